// Package config defines the configuration of an evaluation run and how it is read.
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"time"

	"github.com/a8m/envsubst"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/executor"
	"github.com/makolon/og-vlm/planner"
	"github.com/makolon/og-vlm/sim"
)

// Plan failure policies.
const (
	// PlanFailureSkip scores an episode whose plan could not be obtained from the untouched scene.
	PlanFailureSkip = "skip"
	// PlanFailureAbort fails the run.
	PlanFailureAbort = "abort"
)

// Defaults.
const (
	DefaultEpisodes         = 5
	DefaultRobot            = "r1pro"
	DefaultTemperature      = 0.1
	DefaultSuccessThreshold = 0.999
	DefaultPlanRetries      = 1
	DefaultSimBackend       = "bridge"
	DefaultSimAddress       = "localhost:50051"
)

// Duration is a time.Duration that reads from JSON as a duration string such as "90s".
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "duration must be a string like \"90s\"")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Sim configures the simulation backend.
type Sim struct {
	Backend  string `json:"backend"`
	Address  string `json:"address,omitempty"`
	Headless bool   `json:"headless"`
	Seed     int64  `json:"seed,omitempty"`
}

// Config is the configuration of one evaluation run.
type Config struct {
	Activity         string   `json:"activity"`
	Provider         string   `json:"provider"`
	Model            string   `json:"model"`
	Episodes         int      `json:"episodes"`
	Robot            string   `json:"robot"`
	Executor         string   `json:"executor"`
	Temperature      float64  `json:"temperature"`
	MaxCatalog       int      `json:"max_catalog"`
	Notes            string   `json:"notes,omitempty"`
	SuccessThreshold float64  `json:"success_threshold"`
	PlanFailure      string   `json:"plan_failure"`
	PlanRetries      int      `json:"plan_retries"`
	PlannerTimeout   Duration `json:"planner_timeout,omitempty"`
	PlannerRPM       float64  `json:"planner_requests_per_minute,omitempty"`
	MetricsAddr      string   `json:"metrics_addr,omitempty"`
	Sim              Sim      `json:"sim"`
}

// Default returns a configuration with every optional field at its default.
func Default() *Config {
	return &Config{
		Episodes:         DefaultEpisodes,
		Robot:            DefaultRobot,
		Executor:         string(executor.KindPrimitives),
		Temperature:      DefaultTemperature,
		MaxCatalog:       sim.DefaultMaxCatalog,
		SuccessThreshold: DefaultSuccessThreshold,
		PlanFailure:      PlanFailureSkip,
		PlanRetries:      DefaultPlanRetries,
		Sim: Sim{
			Backend:  DefaultSimBackend,
			Address:  DefaultSimAddress,
			Headless: true,
		},
	}
}

// Validate returns the first constraint the configuration violates.
func (c *Config) Validate() error {
	switch {
	case c.Activity == "":
		return newFieldRequiredError("activity")
	case c.Provider == "":
		return newFieldRequiredError("provider")
	case c.Model == "":
		return newFieldRequiredError("model")
	case c.Episodes < 1:
		return newInvalidFieldError("episodes", c.Episodes, "must be at least 1")
	case c.Executor != string(executor.KindPrimitives) && c.Executor != string(executor.KindTeleport):
		return newInvalidFieldError("executor", c.Executor, "must be primitives or teleport")
	case c.Temperature < 0 || c.Temperature > 2:
		return newInvalidFieldError("temperature", c.Temperature, "must be within [0, 2]")
	case c.MaxCatalog < 1:
		return newInvalidFieldError("max_catalog", c.MaxCatalog, "must be at least 1")
	case c.SuccessThreshold <= 0 || c.SuccessThreshold > 1:
		return newInvalidFieldError("success_threshold", c.SuccessThreshold, "must be within (0, 1]")
	case c.PlanFailure != PlanFailureSkip && c.PlanFailure != PlanFailureAbort:
		return newInvalidFieldError("plan_failure", c.PlanFailure, "must be skip or abort")
	case c.PlanRetries < 0:
		return newInvalidFieldError("plan_retries", c.PlanRetries, "must not be negative")
	case c.PlannerRPM < 0:
		return newInvalidFieldError("planner_requests_per_minute", c.PlannerRPM, "must not be negative")
	case c.Sim.Backend == "":
		return newFieldRequiredError("sim.backend")
	}
	return nil
}

// SimSettings returns the settings the simulation backend is constructed with.
func (c *Config) SimSettings() sim.Settings {
	return sim.Settings{
		Activity: c.Activity,
		Robot:    c.Robot,
		Address:  c.Sim.Address,
		Headless: c.Sim.Headless,
		Seed:     c.Sim.Seed,
	}
}

// PlannerSettings returns the settings the planning provider is constructed with. API keys and
// base URLs come from the provider's environment variables.
func (c *Config) PlannerSettings() planner.Settings {
	return planner.Settings{
		Model:             c.Model,
		Temperature:       c.Temperature,
		Timeout:           time.Duration(c.PlannerTimeout),
		RequestsPerMinute: c.PlannerRPM,
	}
}

// Read reads a configuration file over the defaults. ${VAR} references in the file are expanded
// from the environment first.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(bytes.NewReader(buf))
}

// FromReader decodes a JSON configuration over the defaults.
func FromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables, typically API keys, from the given files, or from
// ".env" when none are given. Missing files are ignored; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "loading %s", p)
		}
	}
	return nil
}
