package programmer

import (
	"github.com/bigbag/amplink-programmer/internal/clock"
	"github.com/bigbag/amplink-programmer/internal/flash"
)

// Config holds the options passed down to the target drivers.
type Config struct {
	Flash []flash.Option
	Clock []clock.Option
}

// Option is a functional option for configuring a Programmer.
type Option func(*Config)

// WithFlashOptions appends options for the flash chips.
func WithFlashOptions(opts ...flash.Option) Option {
	return func(c *Config) {
		c.Flash = append(c.Flash, opts...)
	}
}

// WithClockOptions appends options for the clock device.
func WithClockOptions(opts ...clock.Option) Option {
	return func(c *Config) {
		c.Clock = append(c.Clock, opts...)
	}
}
