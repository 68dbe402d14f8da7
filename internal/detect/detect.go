package detect

import (
	"fmt"

	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"

	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// Channel describes one FTDI channel seen on the USB bus.
type Channel struct {
	Index    int
	Name     string
	Type     string
	VendorID uint16
	DeviceID uint16
}

// Result represents a detected AmPLink bridge.
type Result struct {
	Channels []Channel
}

// Name returns the bridge chip name.
func (r *Result) Name() string {
	if len(r.Channels) == 0 {
		return "unknown"
	}
	return r.Channels[0].Type
}

// ListChannels returns every FTDI channel periph can see.
func ListChannels() ([]Channel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host initialization failed: %w", err)
	}

	var chans []Channel
	for i, d := range ftdi.All() {
		var info ftdi.Info
		d.Info(&info)
		chans = append(chans, Channel{
			Index:    i,
			Name:     d.String(),
			Type:     info.Type,
			VendorID: info.VenID,
			DeviceID: info.DevID,
		})
	}
	return chans, nil
}

// DetectBridge returns the attached bridge. Exactly one four-channel
// FT4232H must be present.
func DetectBridge() (*Result, error) {
	chans, err := ListChannels()
	if err != nil {
		return nil, err
	}
	return match(chans)
}

func match(chans []Channel) (*Result, error) {
	if len(chans) == 0 {
		return nil, fmt.Errorf("no FTDI devices found")
	}

	var bridge []Channel
	for _, c := range chans {
		if c.VendorID == protocol.FTDIVendorID && c.DeviceID == protocol.FT4232HDeviceID {
			bridge = append(bridge, c)
		}
	}

	switch {
	case len(bridge) == 0:
		return nil, fmt.Errorf("no AmPLink bridge found (%d other FTDI channel(s))", len(chans))
	case len(bridge) != protocol.ChannelCount:
		return nil, fmt.Errorf("expected %d bridge channels, found %d", protocol.ChannelCount, len(bridge))
	}
	return &Result{Channels: bridge}, nil
}
