// Package flash drives a SPI NOR flash chip: write enable, chip erase,
// page program and status polling.
package flash

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/bigbag/amplink-programmer/internal/bus"
	"github.com/bigbag/amplink-programmer/internal/protocol"
)

var (
	// ErrDeviceNotPresent is a status read of all ones.
	ErrDeviceNotPresent = errors.New("flash device not present")
	// ErrEraseFailed is the error flag set after a chip erase.
	ErrEraseFailed = errors.New("flash erase failed")
	// ErrWriteFailed is the error flag set after a page program.
	ErrWriteFailed = errors.New("flash page program failed")
	// ErrWriteLatch is a write enable latch that did not follow the request.
	ErrWriteLatch = errors.New("flash write enable latch mismatch")
	// ErrTimeout is a chip that stayed busy past the polling limit.
	ErrTimeout = errors.New("flash busy timeout")
)

// Chip is a flash chip on a SPI channel. It assumes exclusive use of the
// channel.
type Chip struct {
	spi    bus.SPI
	config Config

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Chip on the given channel.
func New(spi bus.SPI, opts ...Option) *Chip {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Chip{
		spi:    spi,
		config: cfg,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Status reads the status register.
func (c *Chip) Status() (byte, error) {
	r := make([]byte, 2)
	if err := bus.TransferSPI(c.spi, []byte{protocol.OpReadStatus}, r); err != nil {
		return 0, err
	}
	if r[0] == protocol.StatusNotPresent {
		return r[0], ErrDeviceNotPresent
	}
	return r[0], nil
}

// SetWriteState sets or clears the write enable latch and checks that the
// latch followed.
func (c *Chip) SetWriteState(enable bool) error {
	op := byte(protocol.OpWriteDisable)
	if enable {
		op = protocol.OpWriteEnable
	}
	if err := bus.WriteSPI(c.spi, []byte{op}); err != nil {
		return fmt.Errorf("write enable=%t: %w", enable, err)
	}

	status, err := c.Status()
	if err != nil {
		return fmt.Errorf("write enable=%t: %w", enable, err)
	}
	if WriteEnabled(status) != enable {
		return fmt.Errorf("write enable=%t: status 0x%02X: %w", enable, status, ErrWriteLatch)
	}
	return nil
}

// EraseChip erases the whole chip and waits for it to finish. The write
// enable latch must already be set.
func (c *Chip) EraseChip() error {
	glog.Info("Erasing chip")
	if err := bus.WriteSPI(c.spi, []byte{protocol.OpChipErase}); err != nil {
		return fmt.Errorf("chip erase: %w", err)
	}

	status, err := c.waitReady(c.config.EraseTimeout)
	if err != nil {
		return fmt.Errorf("chip erase: %w", err)
	}
	if !Succeeded(status) {
		return fmt.Errorf("chip erase: status 0x%02X: %w", status, ErrEraseFailed)
	}
	glog.Info("Chip erased")
	return nil
}

// WritePage programs data at address and waits for it to finish. The caller
// keeps the write within one page; at most a page of data is accepted.
func (c *Chip) WritePage(address uint32, data []byte) error {
	if len(data) > protocol.PageSize {
		return fmt.Errorf("page program 0x%06X: %d bytes exceeds page size", address, len(data))
	}
	glog.V(2).Infof("Writing %d bytes to address 0x%06X", len(data), address)

	if err := bus.WriteSPI(c.spi, protocol.PageProgram(address, data)); err != nil {
		return fmt.Errorf("page program 0x%06X: %w", address, err)
	}

	status, err := c.waitReady(c.config.WriteTimeout)
	if err != nil {
		return fmt.Errorf("page program 0x%06X: %w", address, err)
	}
	if !Succeeded(status) {
		return fmt.Errorf("page program 0x%06X: status 0x%02X: %w", address, status, ErrWriteFailed)
	}
	return nil
}

// waitReady polls the status register until the busy bit clears and
// returns the last status read.
func (c *Chip) waitReady(timeout time.Duration) (byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = c.now().Add(timeout)
	}

	for polls := 1; ; polls++ {
		status, err := c.Status()
		if err != nil {
			return status, err
		}
		if !IsBusy(status) {
			return status, nil
		}

		if c.config.MaxPolls > 0 && polls >= c.config.MaxPolls {
			return status, fmt.Errorf("still busy after %d polls: %w", polls, ErrTimeout)
		}
		if !deadline.IsZero() && c.now().After(deadline) {
			return status, fmt.Errorf("still busy after %v: %w", timeout, ErrTimeout)
		}
		if c.config.PollInterval > 0 {
			c.sleep(c.config.PollInterval)
		}
	}
}

// IsBusy reports whether an erase or program is in progress.
func IsBusy(status byte) bool {
	return status&protocol.StatusBusy != 0
}

// IsReady reports whether the chip accepts a new command.
func IsReady(status byte) bool {
	return !IsBusy(status)
}

// WriteEnabled reports whether the write enable latch is set.
func WriteEnabled(status byte) bool {
	return status&protocol.StatusWriteEnable != 0
}

// Succeeded reports whether the last erase or program completed without
// error. The error flag reads 0 on success.
func Succeeded(status byte) bool {
	return status&protocol.StatusError == 0
}
