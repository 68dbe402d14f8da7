package ihex

import "github.com/marcinbor85/gohex"

// Segment is a contiguous run of data in a record file.
type Segment struct {
	Address uint32
	Size    int
}

// Summary describes the data a record file would write.
type Summary struct {
	DataRecords int
	Bytes       int
	Low         uint32
	High        uint32 // last address written, inclusive
	Segments    []Segment
}

// Inspect validates path with the record streamer and returns what it
// would write, including the merged segment map.
func Inspect(path string) (*Summary, error) {
	sum := &Summary{}
	mem := gohex.NewMemory()
	err := Stream(path, func(address uint32, data []byte) error {
		if len(data) == 0 {
			return nil
		}
		last := address + uint32(len(data)) - 1
		if sum.DataRecords == 0 || address < sum.Low {
			sum.Low = address
		}
		if sum.DataRecords == 0 || last > sum.High {
			sum.High = last
		}
		sum.DataRecords++
		sum.Bytes += len(data)
		mem.SetBinary(address, data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, s := range mem.GetDataSegments() {
		sum.Segments = append(sum.Segments, Segment{Address: s.Address, Size: len(s.Data)})
	}
	return sum, nil
}
