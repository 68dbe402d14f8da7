package bustest

import (
	"errors"
	"fmt"
	"time"

	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// ErrNack is returned for transfers the simulated device does not acknowledge.
var ErrNack = errors.New("bustest: nack")

// Op is one recorded bus operation or wait.
type Op struct {
	Kind string // "write", "read" or "sleep"
	Data []byte
	Wait time.Duration
}

func (o Op) String() string {
	if o.Kind == "sleep" {
		return fmt.Sprintf("sleep %v", o.Wait)
	}
	return fmt.Sprintf("%s % X", o.Kind, o.Data)
}

// Clock simulates the clock generator on the I2C channel.
type Clock struct {
	Addr uint8

	// Mem holds page data by 16-bit register address.
	Mem map[uint16]byte
	// StatusReg is returned for reads of the status register.
	StatusReg byte

	// ReadFailures fails that many reads before succeeding.
	ReadFailures int
	// FailWrite fails the Nth write (1-based). Zero disables it.
	FailWrite int

	Ops []Op

	writes  int
	pointer byte
}

// NewClock returns a clock device answering at addr.
func NewClock(addr uint8) *Clock {
	return &Clock{Addr: addr, Mem: map[uint16]byte{}}
}

// Write implements bus.I2C.
func (c *Clock) Write(addr uint8, w []byte) (int, error) {
	if addr != c.Addr {
		return 0, ErrNack
	}
	c.writes++
	if c.FailWrite != 0 && c.writes == c.FailWrite {
		return 0, ErrNack
	}
	c.Ops = append(c.Ops, Op{Kind: "write", Data: append([]byte(nil), w...)})

	switch {
	case len(w) == 1:
		c.pointer = w[0]
	case len(w) == 2 && w[0] == protocol.ClockRegStatus:
		c.StatusReg = w[1]
	case len(w) >= 3:
		reg := uint16(w[0])<<8 | uint16(w[1])
		for i, b := range w[2:] {
			c.Mem[reg+uint16(i)] = b
		}
	}
	return len(w), nil
}

// Read implements bus.I2C.
func (c *Clock) Read(addr uint8, r []byte) (int, error) {
	if addr != c.Addr {
		return 0, ErrNack
	}
	if c.ReadFailures > 0 {
		c.ReadFailures--
		c.Ops = append(c.Ops, Op{Kind: "read"})
		return 0, ErrNack
	}
	for i := range r {
		if c.pointer == protocol.ClockRegStatus {
			r[i] = c.StatusReg
		} else {
			r[i] = c.Mem[uint16(c.pointer)+uint16(i)]
		}
	}
	c.Ops = append(c.Ops, Op{Kind: "read", Data: append([]byte(nil), r...)})
	return len(r), nil
}

// Sleep records a wait instead of sleeping.
func (c *Clock) Sleep(d time.Duration) {
	c.Ops = append(c.Ops, Op{Kind: "sleep", Wait: d})
}
