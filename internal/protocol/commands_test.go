package protocol

import "testing"

func TestChipSelect_String(t *testing.T) {
	tests := []struct {
		cs       ChipSelect
		expected string
	}{
		{CS1, "1"},
		{CS2, "2"},
		{CS3, "3"},
		{CS4, "4"},
		{ChipSelect(0x01), "?"},
	}

	for _, tc := range tests {
		if got := tc.cs.String(); got != tc.expected {
			t.Errorf("ChipSelect(0x%02X).String() = %q, want %q", byte(tc.cs), got, tc.expected)
		}
	}
}

func TestChipSelect_Line(t *testing.T) {
	tests := []struct {
		cs       ChipSelect
		expected int
	}{
		{CS1, 3},
		{CS2, 4},
		{CS3, 5},
		{CS4, 6},
	}

	for _, tc := range tests {
		if got := tc.cs.Line(); got != tc.expected {
			t.Errorf("CS%s.Line() = %d, want %d", tc.cs, got, tc.expected)
		}
	}
}

func TestParseChipSelect(t *testing.T) {
	for n, want := range map[int]ChipSelect{1: CS1, 2: CS2, 3: CS3, 4: CS4} {
		got, ok := ParseChipSelect(n)
		if !ok || got != want {
			t.Errorf("ParseChipSelect(%d) = %v, %v, want %v, true", n, got, ok, want)
		}
	}

	for _, n := range []int{0, 5, -1} {
		if _, ok := ParseChipSelect(n); ok {
			t.Errorf("ParseChipSelect(%d) ok = true, want false", n)
		}
	}
}

func TestFlashMux(t *testing.T) {
	tests := []struct {
		cs     ChipSelect
		mode   byte
		enable byte
	}{
		{CS2, PinAmpCtrl, PinFlashWP},
		{CS3, PinAmpConfig, PinAmpAlert},
		{CS4, PinFlashRst, PinAmpEn},
	}

	for _, tc := range tests {
		pins, ok := FlashMux(tc.cs)
		if !ok {
			t.Fatalf("FlashMux(CS%s) ok = false", tc.cs)
		}
		if pins.Mode != tc.mode || pins.Enable != tc.enable {
			t.Errorf("FlashMux(CS%s) = %+v, want mode=0x%02X enable=0x%02X", tc.cs, pins, tc.mode, tc.enable)
		}
	}

	if _, ok := FlashMux(CS1); ok {
		t.Error("FlashMux(CS1) ok = true, want false")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   byte
		expected string
	}{
		{0x00, "idle"},
		{StatusBusy, "BUSY"},
		{StatusBusy | StatusWriteEnable, "BUSY WEL"},
		{StatusWriteEnable | StatusError, "WEL ERR"},
		{0x80, "idle"},
	}

	for _, tc := range tests {
		if got := StatusString(tc.status); got != tc.expected {
			t.Errorf("StatusString(0x%02X) = %q, want %q", tc.status, got, tc.expected)
		}
	}
}
