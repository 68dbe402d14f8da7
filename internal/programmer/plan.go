package programmer

import (
	"fmt"

	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// FlashTarget is one flash chip and the file to write into it.
type FlashTarget struct {
	CS   protocol.ChipSelect
	Path string
}

// Name returns the target name used in results and progress reports.
func (t FlashTarget) Name() string {
	return fmt.Sprintf("flash CS%s", t.CS)
}

// Plan lists what a Run programs. Empty paths skip the target.
type Plan struct {
	Flash        []FlashTarget
	Clock        string
	ClockAddress uint8
	Burn         bool
}

// DefaultPlan returns the programming station defaults.
func DefaultPlan() Plan {
	return Plan{
		Flash: []FlashTarget{
			{CS: protocol.CS2, Path: protocol.DefaultFlash2File},
			{CS: protocol.CS3, Path: protocol.DefaultFlash3File},
			{CS: protocol.CS4, Path: protocol.DefaultFlash4File},
		},
		Clock:        protocol.DefaultClockFile,
		ClockAddress: protocol.DefaultClockAddress,
		Burn:         true,
	}
}

// ClockTarget is the target name of the clock device.
const ClockTarget = "clock"

// Result is the outcome of one target.
type Result struct {
	Target  string
	Path    string
	Skipped bool
	Err     error
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
