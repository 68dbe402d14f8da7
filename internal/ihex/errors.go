package ihex

import (
	"errors"
	"fmt"
)

// ErrIO matches failures to open or read a record source.
var ErrIO = errors.New("i/o error")

// ChecksumError is a record whose declared checksum does not match its
// contents. It aborts the whole file.
type ChecksumError struct {
	Name       string
	LineNumber int
	Line       string
	Calculated byte
	Declared   byte
}

func (e *ChecksumError) Error() string {
	where := ""
	if e.Name != "" {
		where = fmt.Sprintf("%s:%d: ", e.Name, e.LineNumber)
	}
	return fmt.Sprintf("%schecksum error: calculated 0x%02X, declared 0x%02X in %q",
		where, e.Calculated, e.Declared, e.Line)
}

// SyntaxError is a record line that cannot be decoded.
type SyntaxError struct {
	Name       string
	LineNumber int
	Msg        string
	Err        error
}

func (e *SyntaxError) Error() string {
	where := ""
	if e.Name != "" {
		where = fmt.Sprintf("%s:%d: ", e.Name, e.LineNumber)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %v", where, e.Msg, e.Err)
	}
	return where + e.Msg
}

func (e *SyntaxError) Unwrap() error { return e.Err }
