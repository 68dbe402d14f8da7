package serial

import (
	"fmt"
	"strconv"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// PortInfo describes a USB serial port.
type PortInfo struct {
	Name         string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Product      string
}

// IsBridge reports whether the port belongs to an AmPLink bridge.
func (p PortInfo) IsBridge() bool {
	return p.VendorID == protocol.FTDIVendorID && p.ProductID == protocol.FT4232HDeviceID
}

// ListPorts returns a list of available serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// ListUSBPorts returns the USB serial ports with their descriptors.
func ListUSBPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate ports: %w", err)
	}

	var ports []PortInfo
	for _, d := range details {
		if !d.IsUSB {
			continue
		}
		ports = append(ports, PortInfo{
			Name:         d.Name,
			VendorID:     parseID(d.VID),
			ProductID:    parseID(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// ListBridgePorts returns the virtual COM ports exposed by attached
// bridges, one per channel whose VCP driver is bound.
func ListBridgePorts() ([]PortInfo, error) {
	ports, err := ListUSBPorts()
	if err != nil {
		return nil, err
	}
	return filterBridge(ports), nil
}

func filterBridge(ports []PortInfo) []PortInfo {
	var out []PortInfo
	for _, p := range ports {
		if p.IsBridge() {
			out = append(out, p)
		}
	}
	return out
}

// parseID parses a hex USB ID as reported by the enumerator, 0 if malformed.
func parseID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
