// Package programmer sequences the AmPLink targets: board mux selection,
// flash erase and program, clock configuration and OTP burn.
package programmer

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/bigbag/amplink-programmer/internal/bus"
	"github.com/bigbag/amplink-programmer/internal/clock"
	"github.com/bigbag/amplink-programmer/internal/flash"
	"github.com/bigbag/amplink-programmer/internal/ihex"
	"github.com/bigbag/amplink-programmer/internal/page"
	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// ErrInvalidChipSelect is a chip select with no flash chip behind it.
var ErrInvalidChipSelect = errors.New("invalid chip select")

// ProgressCallback is called to report file progress for a target.
type ProgressCallback func(target string, read, total int64)

// Programmer drives one bridge. It is not safe for concurrent use.
type Programmer struct {
	spi  bus.SPI
	gpio bus.GPIO
	ctrl bus.GPIO

	flash    *flash.Chip
	clock    *clock.Device
	streamer *ihex.Streamer
	progress ProgressCallback
}

// New creates a Programmer over the bridge channels.
func New(spi bus.SPI, i2c bus.I2C, gpio, ctrl bus.GPIO, opts ...Option) *Programmer {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Programmer{
		spi:      spi,
		gpio:     gpio,
		ctrl:     ctrl,
		flash:    flash.New(spi, cfg.Flash...),
		clock:    clock.New(i2c, cfg.Clock...),
		streamer: ihex.New(),
	}
}

// SetProgressCallback sets the progress callback function.
func (p *Programmer) SetProgressCallback(cb ProgressCallback) {
	p.progress = cb
}

// reportProgress calls the progress callback if set.
func (p *Programmer) reportProgress(target string, read, total int64) {
	if p.progress != nil {
		p.progress(target, read, total)
	}
}

// Init sets the bridge control lines: LED on, SPI mux enabled and routed to
// the connector.
func (p *Programmer) Init() error {
	if err := bus.SetPins(p.ctrl, protocol.PinLED, true); err != nil {
		return fmt.Errorf("failed to set LED: %w", err)
	}
	if err := bus.SetPins(p.ctrl, protocol.PinSPIOEn, false); err != nil {
		return fmt.Errorf("failed to enable SPI mux: %w", err)
	}
	if err := bus.SetPins(p.ctrl, protocol.PinSPISel, true); err != nil {
		return fmt.Errorf("failed to select SPI mux: %w", err)
	}
	return nil
}

// SelectChip routes the SPI bus to a processor board flash chip.
func (p *Programmer) SelectChip(cs protocol.ChipSelect) error {
	mux, ok := protocol.FlashMux(cs)
	if !ok {
		return fmt.Errorf("%s: %w", cs, ErrInvalidChipSelect)
	}
	if err := bus.SetPins(p.gpio, mux.Mode, true); err != nil {
		return fmt.Errorf("select %s: %w", cs, err)
	}
	if err := bus.SetPins(p.gpio, mux.Enable, false); err != nil {
		return fmt.Errorf("select %s: %w", cs, err)
	}
	if err := p.spi.SetChipSelect(cs); err != nil {
		return fmt.Errorf("select %s: %w", cs, &bus.TransportError{Op: "chip select", Err: err})
	}
	return nil
}

// EraseFlash erases one flash chip.
func (p *Programmer) EraseFlash(cs protocol.ChipSelect) error {
	if err := p.SelectChip(cs); err != nil {
		return err
	}
	if err := p.erase(cs); err != nil {
		return err
	}
	return p.flash.SetWriteState(false)
}

// erase enables writes and erases the selected chip, leaving writes
// enabled on success.
func (p *Programmer) erase(cs protocol.ChipSelect) error {
	if err := p.flash.SetWriteState(true); err != nil {
		return err
	}

	glog.Infof("Erasing flash %s", cs)
	if err := p.flash.EraseChip(); err != nil {
		if wErr := p.flash.SetWriteState(false); wErr != nil {
			glog.Warningf("Flash %s: write disable after failed erase: %v", cs, wErr)
		}
		return err
	}
	return nil
}

// ProgramFlash erases one flash chip and writes a hex file into it.
func (p *Programmer) ProgramFlash(cs protocol.ChipSelect, path string) error {
	if err := p.SelectChip(cs); err != nil {
		return err
	}
	if err := p.erase(cs); err != nil {
		return err
	}

	name := FlashTarget{CS: cs}.Name()
	glog.Infof("Writing %s to flash %s", path, cs)
	p.streamer.SetProgressCallback(func(read, total int64) {
		p.reportProgress(name, read, total)
	})
	err := p.streamer.Stream(path, page.Writer(protocol.PageSize, p.flash.WritePage))
	if err != nil {
		if wErr := p.flash.SetWriteState(false); wErr != nil {
			glog.Warningf("Flash %s: write disable after failed write: %v", cs, wErr)
		}
		return err
	}

	return p.flash.SetWriteState(false)
}

// ProgramClock writes a hex file into the clock device at addr and, when
// burn is set, commits it to OTP. Nothing is burned after a failed write.
func (p *Programmer) ProgramClock(addr uint8, path string, burn bool) error {
	if err := p.clock.SetAddress(addr); err != nil {
		return err
	}

	glog.Infof("Writing %s to clock at 0x%02X", path, addr)
	p.streamer.SetProgressCallback(func(read, total int64) {
		p.reportProgress(ClockTarget, read, total)
	})
	if err := p.streamer.Stream(path, p.clock.WritePage); err != nil {
		return err
	}

	if !burn {
		glog.Info("Clock OTP burn skipped")
		return nil
	}
	return p.clock.Burn()
}

// Run programs every target of the plan in order: the flash chips, then
// the clock. A failed target does not stop the run.
func (p *Programmer) Run(plan Plan) []Result {
	var results []Result

	for _, t := range plan.Flash {
		r := Result{Target: t.Name(), Path: t.Path}
		if t.Path == "" {
			r.Skipped = true
		} else {
			r.Err = p.ProgramFlash(t.CS, t.Path)
		}
		logResult(r)
		results = append(results, r)
	}

	r := Result{Target: ClockTarget, Path: plan.Clock}
	if plan.Clock == "" {
		r.Skipped = true
	} else {
		r.Err = p.ProgramClock(plan.ClockAddress, plan.Clock, plan.Burn)
	}
	logResult(r)
	return append(results, r)
}

func logResult(r Result) {
	switch {
	case r.Skipped:
		glog.Infof("%s: skipped", r.Target)
	case r.Err != nil:
		glog.Errorf("%s: %s: %v", r.Target, r.Path, r.Err)
	default:
		glog.Infof("%s: %s programmed", r.Target, r.Path)
	}
}
