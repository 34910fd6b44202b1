package evaluator

import (
	"fmt"
	"time"

	"trafficgate/saturn/pkg/rcp/gate"
)

// Config tunes the evaluator.
type Config struct {
	// ScheduleTolerance is the window around cron occurrences inside
	// which schedule-restricted policies apply.
	// Default: gate.DefaultScheduleTolerance (5 minutes).
	ScheduleTolerance time.Duration
}

// DefaultConfig returns the default evaluator configuration.
func DefaultConfig() *Config {
	return &Config{
		ScheduleTolerance: gate.DefaultScheduleTolerance,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ScheduleTolerance < 0 {
		return fmt.Errorf("schedule tolerance must be non-negative, got %s", c.ScheduleTolerance)
	}
	return nil
}
