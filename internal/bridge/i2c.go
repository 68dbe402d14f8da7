package bridge

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/bigbag/amplink-programmer/internal/bus"
)

// ErrNack is a byte the I2C device did not acknowledge.
var ErrNack = errors.New("i2c: no acknowledge")

// I2C channel pins: SCL on D0, SDA out on D1, SDA in on D2 (tied to D1).
// The FT4232H cannot tristate on a one, so SDA is released by turning D1
// into an input.
const (
	i2cSCL   = 0x01
	i2cSDA   = 0x02
	i2cLines = i2cSCL | i2cSDA
)

// i2cBus runs I2C transactions on an MPSSE channel. It implements i2c.Bus.
type i2cBus struct {
	ch channel
}

var _ i2c.Bus = (*i2cBus)(nil)

func newI2CBus(ch channel, f physic.Frequency) (*i2cBus, error) {
	// Three phase clocking stretches each bit by half a period.
	if err := startMPSSE(ch, f*3/2, true, i2cLines, i2cLines); err != nil {
		return nil, err
	}
	return &i2cBus{ch: ch}, nil
}

func (b *i2cBus) String() string {
	return "amplink-i2c"
}

// SetSpeed implements i2c.Bus.
func (b *i2cBus) SetSpeed(f physic.Frequency) error {
	div, err := clockDivisor(f * 3 / 2)
	if err != nil {
		return err
	}
	_, err = b.ch.Write([]byte{mpsseClockDivisor, byte(div), byte(div >> 8)})
	return err
}

// Tx implements i2c.Bus. A read after a write uses a repeated start.
func (b *i2cBus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("i2c: invalid address 0x%X", addr)
	}
	err := b.tx(byte(addr), w, r)
	if sErr := b.stop(); err == nil {
		err = sErr
	}
	return err
}

func (b *i2cBus) tx(addr byte, w, r []byte) error {
	if len(w) > 0 || len(r) == 0 {
		if err := b.start(); err != nil {
			return err
		}
		if err := b.writeByte(addr << 1); err != nil {
			return fmt.Errorf("address 0x%02X: %w", addr, err)
		}
		for i, c := range w {
			if err := b.writeByte(c); err != nil {
				return fmt.Errorf("byte %d: %w", i, err)
			}
		}
	}
	if len(r) == 0 {
		return nil
	}

	if err := b.start(); err != nil {
		return err
	}
	if err := b.writeByte(addr<<1 | 1); err != nil {
		return fmt.Errorf("address 0x%02X: %w", addr, err)
	}
	for i := range r {
		c, err := b.readByte(i == len(r)-1)
		if err != nil {
			return fmt.Errorf("byte %d: %w", i, err)
		}
		r[i] = c
	}
	return nil
}

// start drives SDA low while SCL is high, then both low. It also serves as
// a repeated start.
func (b *i2cBus) start() error {
	cmd := setLow(i2cSDA, i2cLines)
	cmd = append(cmd, repeat(setLow(i2cLines, i2cLines), 4)...)
	cmd = append(cmd, repeat(setLow(i2cSCL, i2cLines), 4)...)
	cmd = append(cmd, repeat(setLow(0, i2cLines), 4)...)
	_, err := b.ch.Write(cmd)
	return err
}

// stop raises SCL then SDA.
func (b *i2cBus) stop() error {
	cmd := repeat(setLow(0, i2cLines), 4)
	cmd = append(cmd, repeat(setLow(i2cSCL, i2cLines), 4)...)
	cmd = append(cmd, repeat(setLow(i2cLines, i2cLines), 4)...)
	_, err := b.ch.Write(cmd)
	return err
}

// writeByte clocks c out and samples the acknowledge bit.
func (b *i2cBus) writeByte(c byte) error {
	cmd := lengthOp(mpsseWriteFall, 1)
	cmd = append(cmd, c)
	cmd = append(cmd, setLow(0, i2cSCL)...)
	cmd = append(cmd, mpsseReadBitRise, 0)
	cmd = append(cmd, setLow(0, i2cLines)...)
	cmd = append(cmd, mpsseFlush)
	if _, err := b.ch.Write(cmd); err != nil {
		return err
	}

	var ack [1]byte
	if _, err := b.ch.Read(ack[:]); err != nil {
		return err
	}
	if ack[0]&0x01 != 0 {
		return ErrNack
	}
	return nil
}

// readByte clocks a byte in and answers with ACK, or NAK for the last one.
func (b *i2cBus) readByte(last bool) (byte, error) {
	ackBit := byte(0x00)
	if last {
		ackBit = 0x80
	}
	cmd := setLow(0, i2cSCL)
	cmd = append(cmd, lengthOp(mpsseReadRise, 1)...)
	cmd = append(cmd, setLow(0, i2cLines)...)
	cmd = append(cmd, mpsseWriteBitFall, 0, ackBit)
	cmd = append(cmd, setLow(0, i2cLines)...)
	cmd = append(cmd, mpsseFlush)
	if _, err := b.ch.Write(cmd); err != nil {
		return 0, err
	}

	var c [1]byte
	if _, err := b.ch.Read(c[:]); err != nil {
		return 0, err
	}
	return c[0], nil
}

var _ bus.I2C = (*I2CChannel)(nil)

// I2CChannel is the bridge I2C channel.
type I2CChannel struct {
	bus i2c.Bus
}

// Write implements bus.I2C.
func (c *I2CChannel) Write(addr uint8, w []byte) (int, error) {
	d := i2c.Dev{Bus: c.bus, Addr: uint16(addr)}
	return d.Write(w)
}

// Read implements bus.I2C.
func (c *I2CChannel) Read(addr uint8, r []byte) (int, error) {
	d := i2c.Dev{Bus: c.bus, Addr: uint16(addr)}
	if err := d.Tx(nil, r); err != nil {
		return 0, err
	}
	return len(r), nil
}
