package notifier

import "time"

// Config controls run cadence and guarding.
type Config struct {
	RunInterval time.Duration
	RunTimeout  time.Duration
	LockKey     string
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 24 * time.Hour,
		RunTimeout:  10 * time.Minute,
		LockKey:     "dunning:notifier:run",
		LockTTL:     15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
