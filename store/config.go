package store

import "time"

// Config holds tuning knobs shared by the catalog and row repository.
type Config struct {
	// RetryAttempts bounds local retries when the backing store is
	// unavailable. Applies to reads and idempotent writes only.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial delay between retries; it doubles per
	// attempt. Default: 50ms
	RetryBackoff time.Duration

	// PageSize is the default page size for listings when the caller
	// doesn't supply a limit. Default: 100
	PageSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryBackoff:  50 * time.Millisecond,
		PageSize:      100,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 50 * time.Millisecond
	}
	if c.PageSize < 1 {
		c.PageSize = 100
	}
}
