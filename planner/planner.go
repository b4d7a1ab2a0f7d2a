// Package planner defines the planning service the harness asks for plans, and the registry of
// providers implementing it.
package planner

import (
	"context"
	"image"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
)

// Request is everything a planning service is told about an episode. Image is nil when no
// snapshot is available.
type Request struct {
	Activity string
	Catalog  []string
	Notes    string
	Image    image.Image
}

// Planner produces a plan for a request. Responses that cannot be decoded into a plan are
// reported with an error wrapping plan.ErrMalformedPlan.
type Planner interface {
	Plan(ctx context.Context, req Request) (plan.Plan, error)
}

// DefaultTimeout bounds a single planning request.
const DefaultTimeout = 120 * time.Second

// DefaultMaxImageSide is the largest side, in pixels, of an image sent to a planning service.
const DefaultMaxImageSide = 512

// Settings configure a provider. Empty APIKey and BaseURL fall back to the provider's
// environment variables and defaults. A positive RequestsPerMinute paces the provider's requests.
type Settings struct {
	Model             string
	Temperature       float64
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	MaxImageSide      int
	RequestsPerMinute float64
}

// WithDefaults returns s with zero values replaced by defaults.
func (s Settings) WithDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.MaxImageSide <= 0 {
		s.MaxImageSide = DefaultMaxImageSide
	}
	return s
}

// A Constructor builds a provider's planner.
type Constructor func(settings Settings, logger logging.Logger) (Planner, error)

var registry = map[string]Constructor{}

// Register registers a planning provider. Names are case-insensitive.
func Register(provider string, constructor Constructor) {
	provider = strings.ToLower(provider)
	if _, old := registry[provider]; old {
		panic(errors.Errorf("trying to register two planners with same provider %s", provider))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for planner %s", provider))
	}
	registry[provider] = constructor
}

// Lookup looks up a provider's constructor. nil is returned if there is no provider registered.
func Lookup(provider string) Constructor {
	return registry[strings.ToLower(provider)]
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named provider's planner.
func New(provider string, settings Settings, logger logging.Logger) (Planner, error) {
	constructor := Lookup(provider)
	if constructor == nil {
		return nil, errors.Errorf("unknown provider %q (have %v)", provider, Providers())
	}
	if settings.Model == "" {
		return nil, errors.Errorf("provider %s requires a model", provider)
	}
	p, err := constructor(settings.WithDefaults(), logger)
	if err != nil || settings.RequestsPerMinute <= 0 {
		return p, err
	}
	return Paced(p, settings.RequestsPerMinute), nil
}
