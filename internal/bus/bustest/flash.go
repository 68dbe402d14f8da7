// Package bustest provides simulated devices behind the bus interfaces.
package bustest

import (
	"errors"

	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// Flash simulates a SPI NOR flash chip. The write enable latch stays set
// until a write disable, as on the processor board parts.
type Flash struct {
	Mem []byte
	CS  protocol.ChipSelect

	// BusyPolls is how many status reads report busy after an erase or
	// page program.
	BusyPolls int
	// StuckBusy keeps the busy bit set forever.
	StuckBusy bool
	// FailErase and FailProgram set the error flag after the operation.
	FailErase   bool
	FailProgram bool
	// Absent makes status reads return all ones.
	Absent bool
	// IgnoreWriteEnable leaves the latch clear on write enable.
	IgnoreWriteEnable bool
	// StickyLatch leaves the latch set on write disable.
	StickyLatch bool
	// WriteErr fails every Write; ShortWrite drops the last byte.
	WriteErr   error
	ShortWrite bool
	// TransferErr fails every Transfer.
	TransferErr error

	// Frames holds every Write payload in order.
	Frames [][]byte
	// StatusReads counts status transfers.
	StatusReads int
	// PageCrossings counts page programs that spanned a page boundary.
	PageCrossings int

	wel     bool
	busy    int
	errFlag bool
}

// NewFlash returns an erased chip of the given size.
func NewFlash(size int) *Flash {
	f := &Flash{Mem: make([]byte, size)}
	for i := range f.Mem {
		f.Mem[i] = 0xFF
	}
	return f
}

// Write implements bus.SPI.
func (f *Flash) Write(w []byte) (int, error) {
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}
	f.Frames = append(f.Frames, append([]byte(nil), w...))
	if f.ShortWrite && len(w) > 0 {
		return len(w) - 1, nil
	}
	if len(w) == 0 {
		return 0, nil
	}

	switch w[0] {
	case protocol.OpWriteEnable:
		if !f.IgnoreWriteEnable {
			f.wel = true
		}
	case protocol.OpWriteDisable:
		if !f.StickyLatch {
			f.wel = false
		}
	case protocol.OpChipErase:
		if !f.wel {
			break
		}
		for i := range f.Mem {
			f.Mem[i] = 0xFF
		}
		f.busy = f.BusyPolls
		f.errFlag = f.FailErase
	case protocol.OpPageProgram:
		if !f.wel || len(w) < 4 {
			break
		}
		addr := int(w[1])<<16 | int(w[2])<<8 | int(w[3])
		data := w[4:]
		if len(data) > 0 && addr/protocol.PageSize != (addr+len(data)-1)/protocol.PageSize {
			f.PageCrossings++
		}
		for i, b := range data {
			if addr+i < len(f.Mem) {
				f.Mem[addr+i] &= b
			}
		}
		f.busy = f.BusyPolls
		f.errFlag = f.FailProgram
	}
	return len(w), nil
}

// Transfer implements bus.SPI. Only the read status opcode is answered.
func (f *Flash) Transfer(w, r []byte) (int, error) {
	if f.TransferErr != nil {
		return 0, f.TransferErr
	}
	if len(w) == 0 || w[0] != protocol.OpReadStatus {
		return 0, errors.New("bustest: unsupported transfer")
	}
	f.StatusReads++

	status := f.Status()
	if f.busy > 0 {
		f.busy--
	}
	for i := range r {
		r[i] = status
	}
	return len(r), nil
}

// Status returns the current status register without consuming a busy poll.
func (f *Flash) Status() byte {
	if f.Absent {
		return protocol.StatusNotPresent
	}
	var s byte
	if f.busy > 0 || f.StuckBusy {
		s |= protocol.StatusBusy
	}
	if f.wel {
		s |= protocol.StatusWriteEnable
	}
	if f.errFlag {
		s |= protocol.StatusError
	}
	return s
}

// SetChipSelect implements bus.SPI.
func (f *Flash) SetChipSelect(cs protocol.ChipSelect) error {
	f.CS = cs
	return nil
}
