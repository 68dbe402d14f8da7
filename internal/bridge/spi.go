package bridge

import (
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/bigbag/amplink-programmer/internal/bus"
	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// SPI channel pins: SK on D0, MOSI on D1, MISO on D2, chip selects on D3..D7.
const (
	spiIdle = 0xF8 // chip selects high, clock low
	spiDir  = 0xFB // everything but MISO is an output
)

var _ bus.SPI = (*SPIChannel)(nil)

// SPIChannel is the bridge SPI channel in mode 0 with active low chip
// select.
type SPIChannel struct {
	ch channel
	cs byte
}

func newSPI(ch channel, f physic.Frequency) (*SPIChannel, error) {
	if err := startMPSSE(ch, f, false, spiIdle, spiDir); err != nil {
		return nil, err
	}
	return &SPIChannel{ch: ch, cs: 1 << protocol.CS1.Line()}, nil
}

// SetChipSelect implements bus.SPI.
func (s *SPIChannel) SetChipSelect(cs protocol.ChipSelect) error {
	line := cs.Line()
	if line < 3 || line > 7 {
		return fmt.Errorf("chip select %s: no pin D%d", cs, line)
	}
	s.cs = 1 << line
	return nil
}

// Write implements bus.SPI.
func (s *SPIChannel) Write(w []byte) (int, error) {
	cmd := setLow(spiIdle&^s.cs, spiDir)
	cmd = appendWrite(cmd, w)
	cmd = append(cmd, setLow(spiIdle, spiDir)...)
	if _, err := s.ch.Write(cmd); err != nil {
		return 0, err
	}
	return len(w), nil
}

// Transfer implements bus.SPI. r is read after w with the chip select
// held low.
func (s *SPIChannel) Transfer(w, r []byte) (int, error) {
	cmd := setLow(spiIdle&^s.cs, spiDir)
	cmd = appendWrite(cmd, w)
	for n := len(r); n > 0; {
		chunk := min(n, mpsseMaxChunk)
		cmd = append(cmd, lengthOp(mpsseReadRise, chunk)...)
		n -= chunk
	}
	cmd = append(cmd, setLow(spiIdle, spiDir)...)
	cmd = append(cmd, mpsseFlush)

	if _, err := s.ch.Write(cmd); err != nil {
		return 0, err
	}
	if len(r) == 0 {
		return 0, nil
	}
	return s.ch.Read(r)
}

func appendWrite(cmd, w []byte) []byte {
	for len(w) > 0 {
		n := min(len(w), mpsseMaxChunk)
		cmd = append(cmd, lengthOp(mpsseWriteFall, n)...)
		cmd = append(cmd, w[:n]...)
		w = w[n:]
	}
	return cmd
}
