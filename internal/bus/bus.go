// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus moves fixed-size byte blocks to and from the motor-controller
// peripheral. Only one transaction may be in flight at a time; a single
// control loop owns a Transport. Wrap it with Locked if more than one
// goroutine needs it.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/relabs-tech/swarm_controller/internal/wire"
)

// Transport is a duplex block exchange with a peripheral at a fixed address.
type Transport interface {
	// WriteBlock sends first as the command/register byte followed by body.
	// body must be at most wire.MaxBody bytes.
	WriteBlock(addr uint16, first byte, body []byte) error
	// ReadBlock reads exactly n bytes from the peripheral.
	ReadBlock(addr uint16, n int) ([]byte, error)
}

// BusError is a transient link fault (NACK, timeout, short read). Callers
// skip the current tick and try again on the next one.
type BusError struct {
	Op   string // "write" or "read"
	Addr uint16
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s 0x%02X: %v", e.Op, e.Addr, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// ErrBodyTooLong is returned before touching the bus when a write would not
// fit in one transaction.
var ErrBodyTooLong = fmt.Errorf("bus: body longer than %d bytes", wire.MaxBody)

// ErrShortRead is wrapped in a BusError when the peripheral returns fewer
// bytes than requested.
var ErrShortRead = errors.New("short read")

// ErrBadLength is returned before touching the bus when a read asks for a
// length the link cannot express.
var ErrBadLength = errors.New("bus: read length out of range")

// IsBusError reports whether err carries a BusError.
func IsBusError(err error) bool {
	var be *BusError
	return errors.As(err, &be)
}

// checkLength accepts 1..limit bytes.
func checkLength(n, limit int) error {
	if n <= 0 || n > limit {
		return fmt.Errorf("%w: %d (want 1-%d)", ErrBadLength, n, limit)
	}
	return nil
}

func checkBody(body []byte) error {
	if len(body) > wire.MaxBody {
		return ErrBodyTooLong
	}
	return nil
}

// Locked serializes access to a Transport shared by several goroutines.
type Locked struct {
	mu sync.Mutex
	t  Transport
}

// NewLocked wraps t.
func NewLocked(t Transport) *Locked {
	return &Locked{t: t}
}

func (l *Locked) WriteBlock(addr uint16, first byte, body []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.t.WriteBlock(addr, first, body)
}

func (l *Locked) ReadBlock(addr uint16, n int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.t.ReadBlock(addr, n)
}
