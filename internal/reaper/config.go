package reaper

import (
	"time"

	appconfig "github.com/voxora/voxora/internal/config"
)

// Config controls the stale-session sweep loop.
type Config struct {
	BatchSize    int
	PollInterval time.Duration

	// MaxSessionAge is the age past which an active session is force-closed
	// even when no oracle can confirm its fate.
	MaxSessionAge time.Duration

	// MinAge keeps the sweep away from freshly started sessions, so a
	// client close in flight is not raced by an oracle lookup.
	MinAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		PollInterval:  30 * time.Second,
		MaxSessionAge: 2 * time.Hour,
		MinAge:        time.Minute,
	}
}

// FromAppConfig derives the sweep configuration from service configuration.
func FromAppConfig(cfg appconfig.Config) Config {
	return Config{
		BatchSize:     cfg.Reaper.BatchSize,
		PollInterval:  cfg.Reaper.PollInterval,
		MaxSessionAge: cfg.Tokens.MaxSessionDuration,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.MaxSessionAge <= 0 {
		c.MaxSessionAge = defaults.MaxSessionAge
	}
	if c.MinAge <= 0 {
		c.MinAge = defaults.MinAge
	}
	return c
}
