// Package clock programs the clock generator over I2C: register page
// writes and the one-time-programmable burn.
package clock

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/bigbag/amplink-programmer/internal/bus"
	"github.com/bigbag/amplink-programmer/internal/page"
	"github.com/bigbag/amplink-programmer/internal/protocol"
)

var (
	// ErrNoAddress is a write before SetAddress.
	ErrNoAddress = errors.New("clock address not set")
	// ErrInvalidAddress is an address SetAddress refuses.
	ErrInvalidAddress = errors.New("invalid clock address")
	// ErrBurnVerification is a burn whose status check failed. The OTP
	// memory cannot be rewritten; do not burn again.
	ErrBurnVerification = errors.New("clock OTP burn verification failed")
)

// Device is the clock generator on an I2C channel.
type Device struct {
	i2c    bus.I2C
	addr   uint8
	config Config
}

// New creates a Device on the given channel. SetAddress must be called
// before any write.
func New(i2c bus.I2C, opts ...Option) *Device {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Device{i2c: i2c, config: cfg}
}

// SetAddress sets the device's I2C address. Zero is refused.
func (d *Device) SetAddress(addr uint8) error {
	if addr == 0 {
		return fmt.Errorf("0x%02X: %w", addr, ErrInvalidAddress)
	}
	d.addr = addr
	return nil
}

// Address returns the configured I2C address, zero if unset.
func (d *Device) Address() uint8 {
	return d.addr
}

// WritePage writes data at a register address, split so no transfer crosses
// a 256-byte page. Each transfer carries the 16-bit big-endian register
// address before its data.
func (d *Device) WritePage(address uint32, data []byte) error {
	if d.addr == 0 {
		return ErrNoAddress
	}
	return page.Split(protocol.PageSize, address, data, func(a uint32, chunk []byte) error {
		glog.V(2).Infof("Writing %d bytes to clock address 0x%04X", len(chunk), a)
		if err := bus.WriteI2C(d.i2c, d.addr, protocol.ClockWrite(a, chunk)); err != nil {
			return fmt.Errorf("clock write 0x%04X: %w", a, err)
		}
		return nil
	})
}

// ReadRegister reads len(r) bytes starting at reg. The read is retried on
// failure; the register pointer write is not.
func (d *Device) ReadRegister(reg byte, r []byte) error {
	if d.addr == 0 {
		return ErrNoAddress
	}
	if err := bus.WriteI2C(d.i2c, d.addr, []byte{reg}); err != nil {
		return fmt.Errorf("clock read 0x%02X: %w", reg, err)
	}

	var err error
	for attempt := 1; attempt <= d.config.ReadRetries; attempt++ {
		if err = bus.ReadI2C(d.i2c, d.addr, r); err == nil {
			return nil
		}
		glog.V(1).Infof("clock read 0x%02X attempt %d failed: %v", reg, attempt, err)
		if attempt < d.config.ReadRetries {
			d.config.Sleep(d.config.RetryDelay)
		}
	}
	return fmt.Errorf("clock read 0x%02X after %d attempts: %w", reg, d.config.ReadRetries, err)
}

// Burn commits the written configuration to OTP memory and checks the
// result. Any failure aborts immediately and must not be retried blindly:
// the device may already be burned.
func (d *Device) Burn() error {
	if d.addr == 0 {
		return ErrNoAddress
	}
	glog.Infof("Burning clock OTP at 0x%02X", d.addr)

	for i, step := range protocol.BurnSequence() {
		if step.Wait > 0 {
			d.config.Sleep(step.Wait)
			continue
		}
		if err := bus.WriteI2C(d.i2c, d.addr, step.Data); err != nil {
			return fmt.Errorf("burn step %d: %w", i+1, err)
		}
	}

	status := make([]byte, 1)
	if err := d.ReadRegister(protocol.ClockRegStatus, status); err != nil {
		return fmt.Errorf("burn status: %w", err)
	}
	if status[0]&protocol.ClockStatusBurnFailed != 0 {
		return fmt.Errorf("status 0x%02X: %w", status[0], ErrBurnVerification)
	}

	if err := bus.WriteI2C(d.i2c, d.addr, protocol.ClockClearStatus()); err != nil {
		return fmt.Errorf("burn clear status: %w", err)
	}
	glog.Info("Clock OTP burned")
	return nil
}
