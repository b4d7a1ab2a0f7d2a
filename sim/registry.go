package sim

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/logging"
)

// Settings are the parameters a backend needs to bootstrap an environment for an activity.
type Settings struct {
	Activity string
	Robot    string
	Address  string
	Headless bool
	Seed     int64
}

// A Constructor creates an environment from settings.
type Constructor func(ctx context.Context, settings Settings, logger logging.Logger) (Environment, error)

var backendRegistry = map[string]Constructor{}

// RegisterBackend registers a simulation backend by name.
func RegisterBackend(name string, constructor Constructor) {
	if _, old := backendRegistry[name]; old {
		panic(errors.Errorf("trying to register two simulation backends with same name %s", name))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for simulation backend %s", name))
	}
	backendRegistry[name] = constructor
}

// LookupBackend looks up a backend constructor by name. nil is returned if there is no backend
// registered.
func LookupBackend(name string) Constructor {
	return backendRegistry[name]
}

// Backends returns the names of the registered backends, sorted.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs an environment using the named backend.
func New(ctx context.Context, backend string, settings Settings, logger logging.Logger) (Environment, error) {
	constructor := LookupBackend(backend)
	if constructor == nil {
		return nil, errors.Errorf("unknown simulation backend %q (have %v)", backend, Backends())
	}
	env, err := constructor(ctx, settings, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s environment for activity %q", backend, settings.Activity)
	}
	return env, nil
}
