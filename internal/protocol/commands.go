package protocol

// SPI NOR flash opcodes
const (
	OpPageProgram  = 0x02
	OpWriteDisable = 0x04
	OpReadStatus   = 0x05
	OpWriteEnable  = 0x06
	OpChipErase    = 0x60
)

// Flash status register bits
const (
	StatusBusy        = 0x01
	StatusWriteEnable = 0x02
	// StatusError is the erase/program error flag. Clear means the last
	// operation succeeded.
	StatusError = 0x40
)

// StatusNotPresent is what a status read returns when no chip drives MISO.
const StatusNotPresent = 0xFF

// Page geometry shared by flash and clock targets
const (
	PageSize    = 256
	AddressSize = 3 // flash address bytes after the opcode
	// MaxRecordData is the most data bytes one Intel HEX record can carry.
	MaxRecordData = 255
)

// Clock (VersaClock) registers
const (
	ClockRegOTPControl = 0x72
	ClockRegStatus     = 0x9F
	// ClockStatusBurnFailed is set in ClockRegStatus after a failed burn.
	ClockStatusBurnFailed = 0x02
)

// ChipSelect is the SPI chip select configuration of the bridge.
type ChipSelect byte

// Chip select lines
const (
	CS1 ChipSelect = 0x00
	CS2 ChipSelect = 0x04
	CS3 ChipSelect = 0x08
	CS4 ChipSelect = 0x0C
)

// String returns the chip select line number.
func (cs ChipSelect) String() string {
	switch cs {
	case CS1:
		return "1"
	case CS2:
		return "2"
	case CS3:
		return "3"
	case CS4:
		return "4"
	default:
		return "?"
	}
}

// Line returns the bridge pin index (D3..D6) that carries the chip select.
func (cs ChipSelect) Line() int {
	return 3 + int(cs>>2)
}

// ParseChipSelect converts a line number (1-4) to a ChipSelect.
func ParseChipSelect(n int) (ChipSelect, bool) {
	switch n {
	case 1:
		return CS1, true
	case 2:
		return CS2, true
	case 3:
		return CS3, true
	case 4:
		return CS4, true
	default:
		return 0, false
	}
}

// GPIO channel pins (AmPLink connector)
const (
	PinAmpCtrl   = 1 << 0
	PinAmpAlert  = 1 << 1
	PinFlashWP   = 1 << 2
	PinFlashRst  = 1 << 3
	PinAmpEn     = 1 << 4
	PinAmpConfig = 1 << 5
)

// CTRL channel pins (internal to the AmPLink)
const (
	PinLED    = 1 << 0
	PinSPIOEn = 1 << 1 // SPI mux output enable, active low
	PinSPISel = 1 << 2 // SPI mux select
)

// MuxPins are the GPIO pins that route the SPI bus to one flash chip.
// Mode is driven high and Enable is driven low.
type MuxPins struct {
	Mode   byte
	Enable byte
}

// FlashMux returns the mux pins for a processor board flash chip.
func FlashMux(cs ChipSelect) (MuxPins, bool) {
	switch cs {
	case CS2:
		return MuxPins{Mode: PinAmpCtrl, Enable: PinFlashWP}, true
	case CS3:
		return MuxPins{Mode: PinAmpConfig, Enable: PinAmpAlert}, true
	case CS4:
		return MuxPins{Mode: PinFlashRst, Enable: PinAmpEn}, true
	default:
		return MuxPins{}, false
	}
}

// StatusString returns a human-readable decoding of a flash status byte.
func StatusString(status byte) string {
	s := ""
	if status&StatusBusy != 0 {
		s += "BUSY "
	}
	if status&StatusWriteEnable != 0 {
		s += "WEL "
	}
	if status&StatusError != 0 {
		s += "ERR "
	}
	if s == "" {
		return "idle"
	}
	return s[:len(s)-1]
}
