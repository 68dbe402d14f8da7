package flash

import "time"

// Config holds the status polling limits.
type Config struct {
	// EraseTimeout bounds the busy wait after a chip erase. Zero means no
	// limit.
	EraseTimeout time.Duration

	// WriteTimeout bounds the busy wait after a page program. Zero means no
	// limit.
	WriteTimeout time.Duration

	// MaxPolls bounds the number of status reads per busy wait. Zero means
	// no limit.
	MaxPolls int

	// PollInterval is the pause between status reads. Zero polls back to
	// back.
	PollInterval time.Duration
}

func defaultConfig() Config {
	return Config{
		EraseTimeout: 3 * time.Minute,
		WriteTimeout: 5 * time.Second,
	}
}

// Option is a functional option for configuring a Chip.
type Option func(*Config)

// WithEraseTimeout sets the chip erase busy timeout.
func WithEraseTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.EraseTimeout = d
		}
	}
}

// WithWriteTimeout sets the page program busy timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.WriteTimeout = d
		}
	}
}

// WithMaxPolls caps the status reads per busy wait.
func WithMaxPolls(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxPolls = n
		}
	}
}

// WithPollInterval sets the pause between status reads.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.PollInterval = d
		}
	}
}
