// Package page splits address/data runs into writes that never cross a
// page boundary.
package page

import "fmt"

// WriteFunc writes data that lies entirely within one page.
type WriteFunc func(address uint32, data []byte) error

// Split calls fn once per page touched by [address, address+len(data)).
// The first error stops the split and is returned.
func Split(size int, address uint32, data []byte, fn WriteFunc) error {
	if size <= 0 {
		return fmt.Errorf("invalid page size %d", size)
	}
	for len(data) > 0 {
		offset := int(address % uint32(size))
		n := min(len(data), size-offset)

		if err := fn(address, data[:n]); err != nil {
			return err
		}

		address += uint32(n)
		data = data[n:]
	}
	return nil
}

// Writer adapts a single-page primitive into a writer accepting any run.
func Writer(size int, fn WriteFunc) func(address uint32, data []byte) error {
	return func(address uint32, data []byte) error {
		return Split(size, address, data, fn)
	}
}
