// Package bridge opens the four channels of the AmPLink USB bridge and
// exposes them through the bus interfaces.
//
// The AmPLink is an FT4232H. Channels A and B run the MPSSE engine for I2C
// and SPI; channels C and D have no MPSSE and are driven in bit-bang mode.
package bridge

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/d2xx"
	"periph.io/x/host/v3/ftdi"

	"github.com/bigbag/amplink-programmer/internal/bus"
	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// Config holds the channel clock rates.
type Config struct {
	SPIClock physic.Frequency
	I2CClock physic.Frequency
}

// DefaultConfig returns the rates used on the programming station.
func DefaultConfig() Config {
	return Config{
		SPIClock: 100 * physic.KiloHertz,
		I2CClock: 100 * physic.KiloHertz, // standard mode
	}
}

// Bridge holds the open channels. Each channel must be used by one
// goroutine at a time.
type Bridge struct {
	SPI  *SPIChannel
	I2C  *I2CChannel
	GPIO *Port
	Ctrl *Port

	chans []channel
}

// opener opens one channel by index and reports its device type.
type opener func(index int) (channel, ftdi.DevType, error)

// Open finds the bridge through the D2XX driver and configures its channels.
func Open(cfg Config) (*Bridge, error) {
	if !d2xx.Available {
		return nil, errors.New("d2xx driver not available")
	}
	n, e := d2xx.CreateDeviceInfoList()
	if e != 0 {
		return nil, toErr("CreateDeviceInfoList", e)
	}
	return open(cfg, n, openD2XX)
}

func open(cfg Config, n int, openChannel opener) (*Bridge, error) {
	if n != protocol.ChannelCount {
		return nil, fmt.Errorf("expected %d bridge channels, found %d", protocol.ChannelCount, n)
	}

	b := &Bridge{}
	for i := 0; i < n; i++ {
		ch, t, err := openChannel(i)
		if err != nil {
			b.closeChannels()
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}
		b.chans = append(b.chans, ch)
		if t != ftdi.DevTypeFT4232H {
			b.closeChannels()
			return nil, fmt.Errorf("channel %d is %s, expected %s", i, t, ftdi.DevTypeFT4232H)
		}
	}

	if err := b.setup(cfg); err != nil {
		b.closeChannels()
		return nil, err
	}

	glog.Infof("Bridge opened: SPI %s, I2C %s", cfg.SPIClock, cfg.I2CClock)
	return b, nil
}

func (b *Bridge) setup(cfg Config) error {
	i2cBus, err := newI2CBus(b.chans[protocol.ChannelI2C], cfg.I2CClock)
	if err != nil {
		return fmt.Errorf("failed to open I2C channel: %w", err)
	}
	b.I2C = &I2CChannel{bus: i2cBus}

	if b.SPI, err = newSPI(b.chans[protocol.ChannelSPI], cfg.SPIClock); err != nil {
		return fmt.Errorf("failed to open SPI channel: %w", err)
	}
	if b.GPIO, err = newPort(b.chans[protocol.ChannelGPIO]); err != nil {
		return fmt.Errorf("failed to open GPIO channel: %w", err)
	}
	if b.Ctrl, err = newPort(b.chans[protocol.ChannelCtrl]); err != nil {
		return fmt.Errorf("failed to open CTRL channel: %w", err)
	}
	return nil
}

// Close turns the LED off, disables the SPI mux output and releases the
// channels.
func (b *Bridge) Close() error {
	var errs []error
	if b.Ctrl != nil {
		errs = append(errs,
			bus.SetPins(b.Ctrl, protocol.PinLED, false),
			bus.SetPins(b.Ctrl, protocol.PinSPIOEn, true),
		)
	}
	errs = append(errs, b.closeChannels())
	return errors.Join(errs...)
}

func (b *Bridge) closeChannels() error {
	var errs []error
	for _, ch := range b.chans {
		errs = append(errs, ch.Close())
	}
	b.chans = nil
	return errors.Join(errs...)
}
