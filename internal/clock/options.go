package clock

import (
	"time"

	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// Config holds the clock device timing.
type Config struct {
	// ReadRetries is the number of attempts for a register read.
	ReadRetries int

	// RetryDelay is the pause between register read attempts.
	RetryDelay time.Duration

	// Sleep implements the burn waits and retry pauses.
	Sleep func(time.Duration)
}

func defaultConfig() Config {
	return Config{
		ReadRetries: protocol.ReadRetries,
		RetryDelay:  protocol.ReadRetryDelay,
		Sleep:       time.Sleep,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithReadRetries sets the number of register read attempts.
func WithReadRetries(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ReadRetries = n
		}
	}
}

// WithRetryDelay sets the pause between register read attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.RetryDelay = d
		}
	}
}

// WithSleep replaces time.Sleep for the burn waits and retry pauses.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}
