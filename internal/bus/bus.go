// Package bus defines the byte-level transports the programmer drives: a
// SPI channel, an I2C channel and 8-bit GPIO ports.
//
// Implementations report the number of bytes actually moved. Callers use
// the helpers in this package to turn short counts into errors.
package bus

import (
	"errors"
	"fmt"

	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// SPI is a chip-select framed SPI channel.
type SPI interface {
	// Write clocks out w in one chip-select frame.
	Write(w []byte) (int, error)
	// Transfer writes w then reads len(r) bytes in one chip-select frame.
	// It returns the number of bytes read.
	Transfer(w, r []byte) (int, error)
	// SetChipSelect switches the line used by later frames.
	SetChipSelect(cs protocol.ChipSelect) error
}

// I2C is an I2C master channel. Each call is a full start..stop transfer.
type I2C interface {
	Write(addr uint8, w []byte) (int, error)
	Read(addr uint8, r []byte) (int, error)
}

// GPIO is an 8-bit port.
type GPIO interface {
	ReadPort() (byte, error)
	WritePort(v byte) error
}

// ErrTransport matches every transport failure.
var ErrTransport = errors.New("transport error")

// TransportError is a failure reported by the channel driver.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ShortTransferError is a transfer that moved fewer bytes than requested.
type ShortTransferError struct {
	Op   string
	Want int
	Got  int
}

func (e *ShortTransferError) Error() string {
	return fmt.Sprintf("%s: short transfer: %d of %d bytes", e.Op, e.Got, e.Want)
}

func (e *ShortTransferError) Is(target error) bool { return target == ErrTransport }

func check(op string, want, got int, err error) error {
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if got != want {
		return &ShortTransferError{Op: op, Want: want, Got: got}
	}
	return nil
}

// WriteSPI writes w and fails unless every byte went out.
func WriteSPI(s SPI, w []byte) error {
	n, err := s.Write(w)
	return check("spi write", len(w), n, err)
}

// TransferSPI writes w, reads into r and fails unless r was filled.
func TransferSPI(s SPI, w, r []byte) error {
	n, err := s.Transfer(w, r)
	return check("spi transfer", len(r), n, err)
}

// WriteI2C writes w to addr and fails unless every byte was acknowledged.
func WriteI2C(b I2C, addr uint8, w []byte) error {
	n, err := b.Write(addr, w)
	return check("i2c write", len(w), n, err)
}

// ReadI2C reads len(r) bytes from addr.
func ReadI2C(b I2C, addr uint8, r []byte) error {
	n, err := b.Read(addr, r)
	return check("i2c read", len(r), n, err)
}

// SetPins drives the pins in mask high or low, leaving the rest of the port
// unchanged.
func SetPins(g GPIO, mask byte, high bool) error {
	v, err := g.ReadPort()
	if err != nil {
		return &TransportError{Op: "gpio read", Err: err}
	}
	if high {
		v |= mask
	} else {
		v &^= mask
	}
	if err := g.WritePort(v); err != nil {
		return &TransportError{Op: "gpio write", Err: err}
	}
	return nil
}

// PinHigh reports whether any pin in mask reads high.
func PinHigh(g GPIO, mask byte) (bool, error) {
	v, err := g.ReadPort()
	if err != nil {
		return false, &TransportError{Op: "gpio read", Err: err}
	}
	return v&mask != 0, nil
}
