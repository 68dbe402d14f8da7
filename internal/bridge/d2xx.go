package bridge

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/d2xx"
	"periph.io/x/host/v3/ftdi"
)

// ErrTimeout is a read that did not complete in time.
var ErrTimeout = errors.New("bridge read timeout")

// Bit modes
const (
	bitModeReset        = 0x00
	bitModeAsyncBitbang = 0x01
	bitModeMPSSE        = 0x02
)

const readTimeout = 200 * time.Millisecond

// channel is a byte pipe to one bridge channel.
type channel interface {
	Write(b []byte) (int, error)
	// Read blocks until b is full or the read timeout passes.
	Read(b []byte) (int, error)
	SetBitMode(mask, mode byte) error
	// Pins returns the instantaneous level of D0..D7.
	Pins() (byte, error)
	Close() error
}

// d2xxChannel is a channel opened through the FTDI D2XX driver.
type d2xxChannel struct {
	h       d2xx.Handle
	timeout time.Duration
}

func openD2XX(index int) (channel, ftdi.DevType, error) {
	h, e := d2xx.Open(index)
	if e != 0 {
		return nil, 0, toErr("Open", e)
	}
	c := &d2xxChannel{h: h, timeout: readTimeout}

	t, _, _, e := h.GetDeviceInfo()
	if e != 0 {
		c.Close()
		return nil, 0, toErr("GetDeviceInfo", e)
	}
	if err := c.init(); err != nil {
		c.Close()
		return nil, 0, err
	}
	return c, ftdi.DevType(t), nil
}

func (c *d2xxChannel) init() error {
	if e := c.h.SetUSBParameters(65536, 0); e != 0 {
		return toErr("SetUSBParameters", e)
	}
	if e := c.h.SetTimeouts(200, 200); e != 0 {
		return toErr("SetTimeouts", e)
	}
	if e := c.h.SetLatencyTimer(1); e != 0 {
		return toErr("SetLatencyTimer", e)
	}
	return nil
}

func (c *d2xxChannel) Write(b []byte) (int, error) {
	for n := 0; n < len(b); {
		got, e := c.h.Write(b[n:])
		if e != 0 {
			return n + got, toErr("Write", e)
		}
		n += got
	}
	return len(b), nil
}

func (c *d2xxChannel) Read(b []byte) (int, error) {
	deadline := time.Now().Add(c.timeout)
	for n := 0; n < len(b); {
		avail, e := c.h.GetQueueStatus()
		if e != 0 {
			return n, toErr("GetQueueStatus", e)
		}
		if avail == 0 {
			if time.Now().After(deadline) {
				return n, fmt.Errorf("%d of %d bytes: %w", n, len(b), ErrTimeout)
			}
			time.Sleep(time.Millisecond)
			continue
		}
		want := min(int(avail), len(b)-n)
		got, e := c.h.Read(b[n : n+want])
		n += got
		if e != 0 {
			return n, toErr("Read", e)
		}
	}
	return len(b), nil
}

func (c *d2xxChannel) SetBitMode(mask, mode byte) error {
	return toErr("SetBitMode", c.h.SetBitMode(mask, mode))
}

func (c *d2xxChannel) Pins() (byte, error) {
	v, e := c.h.GetBitMode()
	return v, toErr("GetBitMode", e)
}

func (c *d2xxChannel) Close() error {
	return toErr("Close", c.h.Close())
}

func toErr(op string, e d2xx.Err) error {
	if e == 0 {
		return nil
	}
	return fmt.Errorf("d2xx: %s: %s", op, e.String())
}
