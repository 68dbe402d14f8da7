package bustest

// Port simulates an 8-bit GPIO port.
type Port struct {
	Value    byte
	Writes   []byte
	ReadErr  error
	WriteErr error
}

// ReadPort implements bus.GPIO.
func (p *Port) ReadPort() (byte, error) {
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}
	return p.Value, nil
}

// WritePort implements bus.GPIO.
func (p *Port) WritePort(v byte) error {
	if p.WriteErr != nil {
		return p.WriteErr
	}
	p.Value = v
	p.Writes = append(p.Writes, v)
	return nil
}
