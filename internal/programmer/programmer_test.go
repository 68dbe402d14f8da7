package programmer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigbag/amplink-programmer/internal/bus"
	"github.com/bigbag/amplink-programmer/internal/bus/bustest"
	"github.com/bigbag/amplink-programmer/internal/clock"
	"github.com/bigbag/amplink-programmer/internal/flash"
	"github.com/bigbag/amplink-programmer/internal/ihex"
	"github.com/bigbag/amplink-programmer/internal/protocol"
)

// board routes the SPI channel to one simulated flash per chip select.
type board struct {
	chips map[protocol.ChipSelect]*bustest.Flash
	cs    protocol.ChipSelect
}

func newBoard() *board {
	return &board{chips: map[protocol.ChipSelect]*bustest.Flash{
		protocol.CS2: bustest.NewFlash(1024),
		protocol.CS3: bustest.NewFlash(1024),
		protocol.CS4: bustest.NewFlash(1024),
	}}
}

func (b *board) selected() (*bustest.Flash, error) {
	f, ok := b.chips[b.cs]
	if !ok {
		return nil, errors.New("no chip selected")
	}
	return f, nil
}

func (b *board) Write(w []byte) (int, error) {
	f, err := b.selected()
	if err != nil {
		return 0, err
	}
	return f.Write(w)
}

func (b *board) Transfer(w, r []byte) (int, error) {
	f, err := b.selected()
	if err != nil {
		return 0, err
	}
	return f.Transfer(w, r)
}

func (b *board) SetChipSelect(cs protocol.ChipSelect) error {
	b.cs = cs
	return nil
}

type rig struct {
	board *board
	clock *bustest.Clock
	gpio  *bustest.Port
	ctrl  *bustest.Port
	p     *Programmer
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		board: newBoard(),
		clock: bustest.NewClock(protocol.DefaultClockAddress),
		gpio:  &bustest.Port{},
		ctrl:  &bustest.Port{},
	}
	r.p = New(r.board, r.clock, r.gpio, r.ctrl,
		WithFlashOptions(flash.WithMaxPolls(10)),
		WithClockOptions(clock.WithSleep(r.clock.Sleep)),
	)
	return r
}

func hexLine(typ byte, addr uint16, data []byte) string {
	r := &ihex.Record{ByteCount: byte(len(data)), Address: addr, Type: typ, Data: data}
	return r.Encode()
}

func writeHex(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var eof = hexLine(ihex.TypeEOF, 0, nil)

func TestInit(t *testing.T) {
	r := newRig(t)
	r.ctrl.Value = protocol.PinSPIOEn | 0x80

	if err := r.p.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	want := byte(protocol.PinLED | protocol.PinSPISel | 0x80)
	if r.ctrl.Value != want {
		t.Errorf("ctrl = 0x%02X, want 0x%02X", r.ctrl.Value, want)
	}
	if r.gpio.Value != 0 {
		t.Errorf("gpio touched: 0x%02X", r.gpio.Value)
	}
}

func TestInit_PortError(t *testing.T) {
	r := newRig(t)
	r.ctrl.WriteErr = errors.New("usb gone")

	err := r.p.Init()
	if !errors.Is(err, bus.ErrTransport) {
		t.Errorf("Init() error = %v, want transport error", err)
	}
}

func TestSelectChip(t *testing.T) {
	tests := []struct {
		cs   protocol.ChipSelect
		high byte
		low  byte
	}{
		{protocol.CS2, protocol.PinAmpCtrl, protocol.PinFlashWP},
		{protocol.CS3, protocol.PinAmpConfig, protocol.PinAmpAlert},
		{protocol.CS4, protocol.PinFlashRst, protocol.PinAmpEn},
	}

	for _, tt := range tests {
		t.Run(tt.cs.String(), func(t *testing.T) {
			r := newRig(t)
			r.gpio.Value = tt.low | 0x40

			if err := r.p.SelectChip(tt.cs); err != nil {
				t.Fatalf("SelectChip() error = %v", err)
			}
			if r.gpio.Value&tt.high == 0 {
				t.Errorf("mode pin 0x%02X not high: 0x%02X", tt.high, r.gpio.Value)
			}
			if r.gpio.Value&tt.low != 0 {
				t.Errorf("enable pin 0x%02X not low: 0x%02X", tt.low, r.gpio.Value)
			}
			if r.gpio.Value&0x40 == 0 {
				t.Errorf("unrelated pin cleared: 0x%02X", r.gpio.Value)
			}
			if r.board.cs != tt.cs {
				t.Errorf("chip select = %s, want %s", r.board.cs, tt.cs)
			}
		})
	}
}

func TestSelectChip_Invalid(t *testing.T) {
	r := newRig(t)

	err := r.p.SelectChip(protocol.CS1)
	if !errors.Is(err, ErrInvalidChipSelect) {
		t.Errorf("SelectChip(CS1) error = %v, want ErrInvalidChipSelect", err)
	}
	if len(r.gpio.Writes) != 0 {
		t.Errorf("gpio written %d times", len(r.gpio.Writes))
	}
}

func TestProgramFlash(t *testing.T) {
	r := newRig(t)
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeHex(t, "flash.hex",
		hexLine(ihex.TypeData, 0x00F8, data),
		eof,
	)

	var reports int
	r.p.SetProgressCallback(func(target string, read, total int64) {
		if target != "flash CS3" {
			t.Errorf("progress target = %q", target)
		}
		reports++
	})

	if err := r.p.ProgramFlash(protocol.CS3, path); err != nil {
		t.Fatalf("ProgramFlash() error = %v", err)
	}

	f := r.board.chips[protocol.CS3]
	for i, b := range data {
		if f.Mem[0xF8+i] != b {
			t.Fatalf("Mem[0x%X] = 0x%02X, want 0x%02X", 0xF8+i, f.Mem[0xF8+i], b)
		}
	}
	if f.PageCrossings != 0 {
		t.Errorf("PageCrossings = %d, want 0", f.PageCrossings)
	}
	if flash.WriteEnabled(f.Status()) {
		t.Error("write enable latch left set")
	}
	if reports == 0 {
		t.Error("no progress reported")
	}

	for _, cs := range []protocol.ChipSelect{protocol.CS2, protocol.CS4} {
		if len(r.board.chips[cs].Frames) != 0 {
			t.Errorf("%s was written", cs)
		}
	}
}

func TestProgramFlash_EraseFailure(t *testing.T) {
	r := newRig(t)
	f := r.board.chips[protocol.CS2]
	f.FailErase = true
	path := writeHex(t, "flash.hex", hexLine(ihex.TypeData, 0, []byte{1, 2}), eof)

	err := r.p.ProgramFlash(protocol.CS2, path)
	if !errors.Is(err, flash.ErrEraseFailed) {
		t.Fatalf("ProgramFlash() error = %v, want ErrEraseFailed", err)
	}
	if flash.WriteEnabled(f.Status()) {
		t.Error("write enable latch left set after failed erase")
	}
	for _, frame := range f.Frames {
		if frame[0] == protocol.OpPageProgram {
			t.Fatal("page program after failed erase")
		}
	}
}

func TestProgramFlash_StreamFailure(t *testing.T) {
	r := newRig(t)
	f := r.board.chips[protocol.CS4]
	path := writeHex(t, "flash.hex",
		hexLine(ihex.TypeData, 0, []byte{0xAA}),
		":0100010000FF",
		eof,
	)

	err := r.p.ProgramFlash(protocol.CS4, path)
	var ce *ihex.ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("ProgramFlash() error = %v, want ChecksumError", err)
	}
	if ce.LineNumber != 2 {
		t.Errorf("LineNumber = %d, want 2", ce.LineNumber)
	}
	if f.Mem[0] != 0xAA {
		t.Errorf("Mem[0] = 0x%02X, want 0xAA", f.Mem[0])
	}
	if flash.WriteEnabled(f.Status()) {
		t.Error("write enable latch left set after failed stream")
	}
}

func TestProgramFlash_MissingFile(t *testing.T) {
	r := newRig(t)

	err := r.p.ProgramFlash(protocol.CS2, filepath.Join(t.TempDir(), "missing.hex"))
	if !errors.Is(err, ihex.ErrIO) {
		t.Errorf("ProgramFlash() error = %v, want ErrIO", err)
	}
}

func TestProgramFlash_NotPresent(t *testing.T) {
	r := newRig(t)
	r.board.chips[protocol.CS2].Absent = true
	path := writeHex(t, "flash.hex", eof)

	err := r.p.ProgramFlash(protocol.CS2, path)
	if !errors.Is(err, flash.ErrDeviceNotPresent) {
		t.Errorf("ProgramFlash() error = %v, want ErrDeviceNotPresent", err)
	}
}

func TestEraseFlash(t *testing.T) {
	r := newRig(t)
	f := r.board.chips[protocol.CS3]
	f.Mem[10] = 0x00

	if err := r.p.EraseFlash(protocol.CS3); err != nil {
		t.Fatalf("EraseFlash() error = %v", err)
	}
	if f.Mem[10] != 0xFF {
		t.Errorf("Mem[10] = 0x%02X, want 0xFF", f.Mem[10])
	}
	if flash.WriteEnabled(f.Status()) {
		t.Error("write enable latch left set")
	}
}

func TestEraseFlash_Invalid(t *testing.T) {
	r := newRig(t)

	if err := r.p.EraseFlash(protocol.CS1); !errors.Is(err, ErrInvalidChipSelect) {
		t.Errorf("EraseFlash(CS1) error = %v, want ErrInvalidChipSelect", err)
	}
}

func TestProgramClock(t *testing.T) {
	r := newRig(t)
	path := writeHex(t, "clock.hex",
		hexLine(ihex.TypeData, 0x0010, []byte{0x11, 0x22, 0x33}),
		eof,
	)

	if err := r.p.ProgramClock(protocol.DefaultClockAddress, path, true); err != nil {
		t.Fatalf("ProgramClock() error = %v", err)
	}

	for i, want := range []byte{0x11, 0x22, 0x33} {
		if got := r.clock.Mem[0x10+uint16(i)]; got != want {
			t.Errorf("Mem[0x%X] = 0x%02X, want 0x%02X", 0x10+i, got, want)
		}
	}
	last := r.clock.Ops[len(r.clock.Ops)-1]
	if last.String() != "write 9F 00" {
		t.Errorf("last op = %q, want burn status clear", last)
	}
}

func TestProgramClock_NoBurn(t *testing.T) {
	r := newRig(t)
	path := writeHex(t, "clock.hex", hexLine(ihex.TypeData, 0, []byte{0x01}), eof)

	if err := r.p.ProgramClock(protocol.DefaultClockAddress, path, false); err != nil {
		t.Fatalf("ProgramClock() error = %v", err)
	}
	if len(r.clock.Ops) != 1 {
		t.Errorf("ops = %v, want the data write only", r.clock.Ops)
	}
}

func TestProgramClock_StreamFailureSkipsBurn(t *testing.T) {
	r := newRig(t)
	path := writeHex(t, "clock.hex",
		hexLine(ihex.TypeData, 0, []byte{0x01}),
		":0100010000FF",
	)

	err := r.p.ProgramClock(protocol.DefaultClockAddress, path, true)
	var ce *ihex.ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("ProgramClock() error = %v, want ChecksumError", err)
	}
	for _, op := range r.clock.Ops {
		if op.Kind == "sleep" {
			t.Fatal("burn attempted after failed write")
		}
	}
}

func TestProgramClock_WrongAddress(t *testing.T) {
	r := newRig(t)
	path := writeHex(t, "clock.hex", hexLine(ihex.TypeData, 0, []byte{0x01}), eof)

	err := r.p.ProgramClock(0x50, path, true)
	if !errors.Is(err, bustest.ErrNack) {
		t.Errorf("ProgramClock() error = %v, want nack", err)
	}
}

func TestProgramClock_InvalidAddress(t *testing.T) {
	r := newRig(t)

	err := r.p.ProgramClock(0, "clock.hex", true)
	if !errors.Is(err, clock.ErrInvalidAddress) {
		t.Errorf("ProgramClock() error = %v, want ErrInvalidAddress", err)
	}
}

func TestProgramClock_BurnVerification(t *testing.T) {
	r := newRig(t)
	r.clock.StatusReg = protocol.ClockStatusBurnFailed
	path := writeHex(t, "clock.hex", hexLine(ihex.TypeData, 0, []byte{0x01}), eof)

	err := r.p.ProgramClock(protocol.DefaultClockAddress, path, true)
	if !errors.Is(err, clock.ErrBurnVerification) {
		t.Errorf("ProgramClock() error = %v, want ErrBurnVerification", err)
	}
}

func TestRun(t *testing.T) {
	r := newRig(t)
	good := writeHex(t, "good.hex", hexLine(ihex.TypeData, 0, []byte{0x5A}), eof)
	r.board.chips[protocol.CS3].FailErase = true

	plan := Plan{
		Flash: []FlashTarget{
			{CS: protocol.CS2, Path: good},
			{CS: protocol.CS3, Path: good},
			{CS: protocol.CS4, Path: good},
		},
		Clock:        good,
		ClockAddress: protocol.DefaultClockAddress,
		Burn:         true,
	}

	var order []string
	r.p.SetProgressCallback(func(target string, read, total int64) {
		if len(order) == 0 || order[len(order)-1] != target {
			order = append(order, target)
		}
	})

	results := r.p.Run(plan)
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}

	wantTargets := []string{"flash CS2", "flash CS3", "flash CS4", "clock"}
	for i, res := range results {
		if res.Target != wantTargets[i] {
			t.Errorf("results[%d].Target = %q, want %q", i, res.Target, wantTargets[i])
		}
	}
	if !errors.Is(results[1].Err, flash.ErrEraseFailed) {
		t.Errorf("CS3 error = %v, want ErrEraseFailed", results[1].Err)
	}
	for _, i := range []int{0, 2, 3} {
		if results[i].Err != nil {
			t.Errorf("%s error = %v", results[i].Target, results[i].Err)
		}
	}
	if !Failed(results) {
		t.Error("Failed() = false")
	}

	if r.board.chips[protocol.CS4].Mem[0] != 0x5A {
		t.Error("CS4 not programmed after CS3 failure")
	}
	if r.clock.Mem[0] != 0x5A {
		t.Error("clock not programmed after CS3 failure")
	}

	wantOrder := []string{"flash CS2", "flash CS4", "clock"}
	if strings.Join(order, ",") != strings.Join(wantOrder, ",") {
		t.Errorf("progress order = %v, want %v", order, wantOrder)
	}
}

func TestRun_SkipsEmptyPaths(t *testing.T) {
	r := newRig(t)
	good := writeHex(t, "good.hex", hexLine(ihex.TypeData, 0, []byte{0x01}), eof)

	plan := Plan{
		Flash: []FlashTarget{
			{CS: protocol.CS2},
			{CS: protocol.CS3, Path: good},
		},
		ClockAddress: protocol.DefaultClockAddress,
	}

	results := r.p.Run(plan)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if !results[0].Skipped || results[1].Skipped || !results[2].Skipped {
		t.Errorf("skipped = %t %t %t, want true false true",
			results[0].Skipped, results[1].Skipped, results[2].Skipped)
	}
	if Failed(results) {
		t.Error("Failed() = true")
	}
	if len(r.board.chips[protocol.CS2].Frames) != 0 {
		t.Error("skipped CS2 was written")
	}
	if len(r.clock.Ops) != 0 {
		t.Error("skipped clock was written")
	}
}

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan()

	if len(plan.Flash) != 3 {
		t.Fatalf("len(Flash) = %d, want 3", len(plan.Flash))
	}
	want := []FlashTarget{
		{CS: protocol.CS2, Path: "flash_2A.hex"},
		{CS: protocol.CS3, Path: "flash_3A.hex"},
		{CS: protocol.CS4, Path: "flash_4A.hex"},
	}
	for i := range want {
		if plan.Flash[i] != want[i] {
			t.Errorf("Flash[%d] = %+v, want %+v", i, plan.Flash[i], want[i])
		}
	}
	if plan.Clock != "clock.hex" || plan.ClockAddress != 0x6A || !plan.Burn {
		t.Errorf("clock = %q 0x%02X burn=%t", plan.Clock, plan.ClockAddress, plan.Burn)
	}
}

func TestFlashTargetName(t *testing.T) {
	tests := []struct {
		cs   protocol.ChipSelect
		want string
	}{
		{protocol.CS1, "flash CS1"},
		{protocol.CS2, "flash CS2"},
		{protocol.CS4, "flash CS4"},
	}

	for _, tt := range tests {
		if got := (FlashTarget{CS: tt.cs}).Name(); got != tt.want {
			t.Errorf("FlashTarget{CS: %s}.Name() = %q, want %q", tt.cs, got, tt.want)
		}
	}
}
