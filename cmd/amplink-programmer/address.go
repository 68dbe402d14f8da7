package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseAddress parses a 7-bit I2C address given as "0x6A" or "6A".
func parseAddress(s string) (uint8, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" || len(digits) > 2 {
		return 0, fmt.Errorf("invalid I2C address %q", s)
	}
	v, err := strconv.ParseUint(digits, 16, 8)
	if err != nil || v == 0 || v > 0x7F {
		return 0, fmt.Errorf("invalid I2C address %q", s)
	}
	return uint8(v), nil
}
