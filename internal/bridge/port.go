package bridge

import "github.com/bigbag/amplink-programmer/internal/bus"

var _ bus.GPIO = (*Port)(nil)

// Port is a bridge channel in asynchronous bit-bang mode, bit i being pin
// Di. All pins are outputs.
type Port struct {
	ch channel
}

func newPort(ch channel) (*Port, error) {
	if err := ch.SetBitMode(0xFF, bitModeAsyncBitbang); err != nil {
		return nil, err
	}
	return &Port{ch: ch}, nil
}

// ReadPort implements bus.GPIO.
func (p *Port) ReadPort() (byte, error) {
	return p.ch.Pins()
}

// WritePort implements bus.GPIO.
func (p *Port) WritePort(v byte) error {
	_, err := p.ch.Write([]byte{v})
	return err
}
