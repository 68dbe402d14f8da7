package ihex

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// StartCode begins every record line.
const StartCode = ':'

// Record types
const (
	TypeData            = 0x00
	TypeEOF             = 0x01
	TypeExtendedAddress = 0x04
)

// headerLen is the hex digit count of byte count, address and type.
const headerLen = 8

// Record is one decoded Intel HEX line.
type Record struct {
	ByteCount byte
	Address   uint16
	Type      byte
	Data      []byte
	Checksum  byte
}

// Checksum returns the two's complement of the byte sum of a record's
// fields.
func Checksum(byteCount byte, address uint16, typ byte, data []byte) byte {
	sum := byteCount + byte(address>>8) + byte(address) + typ
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// ParseRecord decodes a record line without its trailing newline. Text
// after the checksum field is ignored. Digits missing at the end of a line
// read as zero, so a line shorter than its byte count fails the checksum.
func ParseRecord(line string) (*Record, error) {
	if len(line) == 0 || line[0] != StartCode {
		return nil, &SyntaxError{Msg: "missing start code"}
	}
	body := line[1:]
	if len(body) < headerLen {
		return nil, &SyntaxError{Msg: fmt.Sprintf("record too short: %d characters", len(line))}
	}

	var header [4]byte
	if _, err := hex.Decode(header[:], []byte(body[:headerLen])); err != nil {
		return nil, &SyntaxError{Msg: "bad header", Err: err}
	}

	rec := &Record{
		ByteCount: header[0],
		Address:   uint16(header[1])<<8 | uint16(header[2]),
		Type:      header[3],
	}

	need := headerLen + 2*int(rec.ByteCount) + 2
	if len(body) < need {
		body += strings.Repeat("0", need-len(body))
	}

	rec.Data = make([]byte, rec.ByteCount)
	if _, err := hex.Decode(rec.Data, []byte(body[headerLen:need-2])); err != nil {
		return nil, &SyntaxError{Msg: "bad data", Err: err}
	}

	var sum [1]byte
	if _, err := hex.Decode(sum[:], []byte(body[need-2:need])); err != nil {
		return nil, &SyntaxError{Msg: "bad checksum field", Err: err}
	}
	rec.Checksum = sum[0]

	if calc := Checksum(rec.ByteCount, rec.Address, rec.Type, rec.Data); calc != rec.Checksum {
		return nil, &ChecksumError{Line: line, Calculated: calc, Declared: rec.Checksum}
	}

	return rec, nil
}

// Encode formats the record as an uppercase record line. The checksum is
// recomputed.
func (r *Record) Encode() string {
	buf := make([]byte, 0, 4+len(r.Data)+1)
	buf = append(buf, byte(len(r.Data)), byte(r.Address>>8), byte(r.Address), r.Type)
	buf = append(buf, r.Data...)
	buf = append(buf, Checksum(byte(len(r.Data)), r.Address, r.Type, r.Data))
	return fmt.Sprintf("%c%X", StartCode, buf)
}
