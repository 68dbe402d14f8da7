package protocol

import "time"

// Bridge channels, in enumeration order
const (
	ChannelI2C = iota
	ChannelSPI
	ChannelGPIO
	ChannelCtrl

	ChannelCount
)

// USB identifiers of the FT4232H inside the AmPLink
const (
	FTDIVendorID    = 0x0403
	FT4232HDeviceID = 0x6011
)

// Defaults taken from the production programming station
const (
	DefaultClockAddress = 0x6A
	DefaultClockFile    = "clock.hex"
	DefaultFlash2File   = "flash_2A.hex"
	DefaultFlash3File   = "flash_3A.hex"
	DefaultFlash4File   = "flash_4A.hex"
)

// Clock burn timing
const (
	BurnSettle     = 500 * time.Millisecond
	ReadRetries    = 20
	ReadRetryDelay = 100 * time.Millisecond
)
