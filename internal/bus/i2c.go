package bus

import (
	"periph.io/x/conn/v3/i2c"
)

// I2C talks to the peripheral with SMBus block semantics: a write is the
// register byte followed by the body, a read first writes ReadRegister and
// then clocks in n bytes.
type I2C struct {
	Bus          i2c.Bus
	ReadRegister byte
}

// NewI2C returns a Transport on b that reads from register 0.
func NewI2C(b i2c.Bus) *I2C {
	return &I2C{Bus: b}
}

func (t *I2C) WriteBlock(addr uint16, first byte, body []byte) error {
	if err := checkBody(body); err != nil {
		return err
	}
	w := make([]byte, 0, 1+len(body))
	w = append(w, first)
	w = append(w, body...)
	dev := i2c.Dev{Bus: t.Bus, Addr: addr}
	if err := dev.Tx(w, nil); err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

func (t *I2C) ReadBlock(addr uint16, n int) ([]byte, error) {
	if err := checkLength(n, 255); err != nil {
		return nil, err
	}
	r := make([]byte, n)
	dev := i2c.Dev{Bus: t.Bus, Addr: addr}
	if err := dev.Tx([]byte{t.ReadRegister}, r); err != nil {
		return nil, &BusError{Op: "read", Addr: addr, Err: err}
	}
	return r, nil
}
