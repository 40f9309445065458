package bus

import (
	"fmt"
	"io"
	"log"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// Bridge frame markers for the UART link.
const (
	frameWrite = 'W'
	frameRead  = 'R'
)

// Serial reaches the peripheral through a UART bridge. A write frame is
// 'W', addr, length, first, body...; a read frame is 'R', addr, n and the
// bridge answers with exactly n bytes.
//
// Replies carry no header, so after a failed exchange the tail of a late
// reply may still be in the input buffer. The next read discards it first.
type Serial struct {
	port  io.ReadWriteCloser
	stale bool
}

// maxDrainReads bounds the discard loop on a line that never goes quiet.
const maxDrainReads = 64

// SerialOptions configures OpenSerial.
type SerialOptions struct {
	PortName string
	BaudRate int
	// Timeout bounds each read; a silent bridge surfaces as a short read.
	Timeout time.Duration
}

// OpenSerial opens the UART and returns a Transport on it.
func OpenSerial(o SerialOptions) (*Serial, error) {
	timeoutMS := uint(o.Timeout / time.Millisecond)
	if timeoutMS == 0 {
		timeoutMS = 100
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:              o.PortName,
		BaudRate:              uint(o.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: timeoutMS,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", o.PortName, err)
	}
	return NewSerial(port), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.ReadWriteCloser) *Serial {
	return &Serial{port: port}
}

func (s *Serial) WriteBlock(addr uint16, first byte, body []byte) error {
	if err := checkBody(body); err != nil {
		return err
	}
	if addr > 0xFF {
		return fmt.Errorf("bus: serial bridge address 0x%X does not fit in one byte", addr)
	}
	frame := make([]byte, 0, 4+len(body))
	frame = append(frame, frameWrite, byte(addr), byte(1+len(body)), first)
	frame = append(frame, body...)
	if _, err := s.port.Write(frame); err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

func (s *Serial) ReadBlock(addr uint16, n int) ([]byte, error) {
	if err := checkLength(n, 255); err != nil {
		return nil, err
	}
	if addr > 0xFF {
		return nil, fmt.Errorf("bus: serial bridge address 0x%X does not fit in one byte", addr)
	}
	if s.stale {
		s.drain(addr)
	}
	if _, err := s.port.Write([]byte{frameRead, byte(addr), byte(n)}); err != nil {
		s.stale = true
		return nil, &BusError{Op: "read", Addr: addr, Err: err}
	}
	r := make([]byte, n)
	got := 0
	idle := 0
	for got < n {
		k, err := s.port.Read(r[got:])
		got += k
		if err != nil {
			if got < n {
				s.stale = true
				return nil, &BusError{Op: "read", Addr: addr, Err: fmt.Errorf("%w (%d of %d bytes): %v", ErrShortRead, got, n, err)}
			}
			break
		}
		if k == 0 {
			idle++
			if idle >= 3 {
				s.stale = true
				return nil, &BusError{Op: "read", Addr: addr, Err: fmt.Errorf("%w (%d of %d bytes)", ErrShortRead, got, n)}
			}
		}
	}
	return r, nil
}

// drain reads and drops input until a read comes back empty.
func (s *Serial) drain(addr uint16) {
	buf := make([]byte, 64)
	dropped := 0
	for i := 0; i < maxDrainReads; i++ {
		k, err := s.port.Read(buf)
		dropped += k
		if k == 0 || err != nil {
			break
		}
	}
	s.stale = false
	if dropped > 0 {
		log.Printf("bus: discarded %d stale bytes before read from 0x%02X", dropped, addr)
	}
}

// Close releases the port.
func (s *Serial) Close() error {
	return s.port.Close()
}
