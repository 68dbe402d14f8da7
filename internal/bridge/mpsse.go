package bridge

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// MPSSE commands (FTDI AN_108)
const (
	mpsseWriteFall    = 0x11 // bytes out on falling edge, MSB first
	mpsseWriteBitFall = 0x13 // bits out on falling edge, MSB first
	mpsseReadRise     = 0x20 // bytes in on rising edge, MSB first
	mpsseReadBitRise  = 0x22 // bits in on rising edge
	mpsseSetLow       = 0x80 // <value> <direction> of D0..D7, 1 is output
	mpsseLoopbackOff  = 0x85
	mpsseClockDivisor = 0x86 // <low> <high>
	mpsseFlush        = 0x87
	mpsseClock30MHz   = 0x8A // divide by 5 off
	mpsseClock3Phase  = 0x8C
	mpsseClock2Phase  = 0x8D
	mpsseAdaptiveOff  = 0x97
	mpsseBadCommand   = 0xFA

	mpsseMaxChunk = 65536
)

const mpsseBaseClock = 30 * physic.MegaHertz

// startMPSSE switches ch to MPSSE mode, checks that the engine answers and
// sets the clock and the D0..D7 levels.
func startMPSSE(ch channel, f physic.Frequency, threePhase bool, value, dir byte) error {
	if err := ch.SetBitMode(0, bitModeReset); err != nil {
		return err
	}
	if err := ch.SetBitMode(0, bitModeMPSSE); err != nil {
		return err
	}
	if err := syncMPSSE(ch); err != nil {
		return err
	}

	div, err := clockDivisor(f)
	if err != nil {
		return err
	}
	phase := byte(mpsseClock2Phase)
	if threePhase {
		phase = mpsseClock3Phase
	}
	cmd := []byte{
		mpsseClock30MHz, mpsseAdaptiveOff, phase, mpsseLoopbackOff,
		mpsseClockDivisor, byte(div), byte(div >> 8),
		mpsseSetLow, value, dir,
	}
	_, err = ch.Write(cmd)
	return err
}

// syncMPSSE sends an invalid command and expects it echoed back after the
// bad command marker.
func syncMPSSE(ch channel) error {
	if _, err := ch.Write([]byte{0xAA, mpsseFlush}); err != nil {
		return fmt.Errorf("MPSSE sync: %w", err)
	}
	var r [2]byte
	if _, err := ch.Read(r[:]); err != nil {
		return fmt.Errorf("MPSSE sync: %w", err)
	}
	if r[0] != mpsseBadCommand || r[1] != 0xAA {
		return fmt.Errorf("MPSSE sync: unexpected reply % X", r)
	}
	return nil
}

// clockDivisor returns the divisor register value for f.
func clockDivisor(f physic.Frequency) (uint16, error) {
	if f <= 0 {
		return 0, fmt.Errorf("invalid clock %s", f)
	}
	div := int64(mpsseBaseClock / f)
	if div < 1 {
		div = 1
	}
	if div > 65536 {
		return 0, fmt.Errorf("clock %s is too low", f)
	}
	return uint16(div - 1), nil
}

func setLow(value, dir byte) []byte {
	return []byte{mpsseSetLow, value, dir}
}

// lengthOp encodes a byte stream op of n bytes (1..65536).
func lengthOp(op byte, n int) []byte {
	return []byte{op, byte(n - 1), byte((n - 1) >> 8)}
}

func repeat(cmd []byte, n int) []byte {
	out := make([]byte, 0, len(cmd)*n)
	for i := 0; i < n; i++ {
		out = append(out, cmd...)
	}
	return out
}
