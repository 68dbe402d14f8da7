package protocol

import "time"

// PageProgram builds a page program transfer: opcode, 24-bit big-endian
// address, data.
func PageProgram(address uint32, data []byte) []byte {
	buf := make([]byte, 1+AddressSize+len(data))
	buf[0] = OpPageProgram
	for i := 0; i < AddressSize; i++ {
		buf[1+i] = byte(address >> (16 - 8*i))
	}
	copy(buf[1+AddressSize:], data)
	return buf
}

// ClockWrite builds a clock register write: 16-bit big-endian register
// address followed by the payload.
func ClockWrite(address uint32, data []byte) []byte {
	buf := make([]byte, 2+len(data))
	buf[0] = byte(address >> 8)
	buf[1] = byte(address)
	copy(buf[2:], data)
	return buf
}

// ClockClearStatus clears the clock status register after a burn.
func ClockClearStatus() []byte {
	return []byte{ClockRegStatus, 0x00}
}

// BurnStep is one step of the OTP burn: either a register write or a wait.
type BurnStep struct {
	Data []byte
	Wait time.Duration
}

// BurnSequence returns the fixed OTP burn sequence, up to but not including
// the status check.
func BurnSequence() []BurnStep {
	w := func(v byte) BurnStep {
		return BurnStep{Data: []byte{0x00, ClockRegOTPControl, v}}
	}
	return []BurnStep{
		w(0xF0),
		w(0xF8),
		{Wait: BurnSettle},
		w(0xF0),
		w(0xF8),
		{Wait: BurnSettle},
		w(0xF0),
		w(0xF2),
		w(0xF0),
	}
}
