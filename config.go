package scrapeflow

import (
	"fmt"

	"scrapeflow/service/runner"
)

// Config is a serialisable representation of the runtime configuration. The
// zero-value is useful – nested fields inherit their package defaults.
type Config struct {
	Runner runner.Config `json:"runner" yaml:"runner"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Runner: runner.DefaultConfig(),
	}
}

// Validate returns an error describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Runner.WorkerCount <= 0 {
		return fmt.Errorf("runner.workerCount must be > 0")
	}
	return nil
}
