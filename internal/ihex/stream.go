// Package ihex streams Intel HEX record files into a write callback.
package ihex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
)

// WriteFunc receives the absolute address and payload of one data record.
// data is only valid for the duration of the call.
type WriteFunc func(address uint32, data []byte) error

// ProgressCallback is called after each line with the bytes consumed so far
// and the source size (-1 when unknown).
type ProgressCallback func(read, total int64)

// Streamer decodes record files line by line.
type Streamer struct {
	progress ProgressCallback
}

// New creates a new Streamer.
func New() *Streamer {
	return &Streamer{}
}

// SetProgressCallback sets the progress callback function.
func (s *Streamer) SetProgressCallback(cb ProgressCallback) {
	s.progress = cb
}

func (s *Streamer) reportProgress(read, total int64) {
	if s.progress != nil {
		s.progress(read, total)
	}
}

// Stream opens path and streams its records into fn.
func (s *Streamer) Stream(path string, fn WriteFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	size := int64(-1)
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}

	return s.StreamReader(f, path, size, fn)
}

// StreamReader streams records from r into fn. name is used in error
// messages and size in progress reports.
//
// Lines that do not start with ':' are skipped. Data records are passed to
// fn in file order; the first failure from fn stops the stream and is
// returned. An end-of-file record stops the stream successfully.
func (s *Streamer) StreamReader(r io.Reader, name string, size int64, fn WriteFunc) error {
	br := bufio.NewReader(r)

	var (
		extAddr uint32
		read    int64
		lineNum int
	)

	for {
		raw, err := br.ReadString('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: read %s: %w", ErrIO, name, err)
		}
		read += int64(len(raw))
		lineNum++

		line := raw
		if i := strings.IndexAny(line, "\r\n"); i >= 0 {
			line = line[:i]
		}

		if len(line) > 0 && line[0] == StartCode {
			rec, perr := ParseRecord(line)
			if perr != nil {
				return s.locate(perr, name, lineNum)
			}

			switch rec.Type {
			case TypeData:
				addr := extAddr<<16 | uint32(rec.Address)
				glog.V(3).Infof("%s:%d: data 0x%08X (%d bytes)", name, lineNum, addr, len(rec.Data))
				if werr := fn(addr, rec.Data); werr != nil {
					return fmt.Errorf("write 0x%08X: %w", addr, werr)
				}
			case TypeEOF:
				s.reportProgress(read, size)
				return nil
			case TypeExtendedAddress:
				if len(rec.Data) < 2 {
					return s.locate(&SyntaxError{Msg: "extended address record needs 2 data bytes"}, name, lineNum)
				}
				extAddr = uint32(rec.Data[0])<<8 | uint32(rec.Data[1])
			default:
				glog.V(2).Infof("%s:%d: ignoring record type 0x%02X", name, lineNum, rec.Type)
			}
		}

		s.reportProgress(read, size)

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: read %s: %w", ErrIO, name, err)
		}
	}
}

// locate fills in the source position of a parse error.
func (s *Streamer) locate(err error, name string, lineNum int) error {
	var ce *ChecksumError
	if errors.As(err, &ce) {
		ce.Name, ce.LineNumber = name, lineNum
		glog.Errorf("checksum error in %s line %d: %s (calculated %02X, expected %02X)",
			name, lineNum, ce.Line, ce.Calculated, ce.Declared)
		return ce
	}
	var se *SyntaxError
	if errors.As(err, &se) {
		se.Name, se.LineNumber = name, lineNum
		return se
	}
	return err
}

// Stream streams path into fn with a default Streamer.
func Stream(path string, fn WriteFunc) error {
	return New().Stream(path, fn)
}
