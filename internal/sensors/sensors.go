// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors reads the robot's auxiliary I2C sensors. Every sensor is a
// Reader; a failed read is returned immediately as a *DriverError, with no
// retry. Samples are published raw.
package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
)

// Reader is the capability every sensor driver exposes.
type Reader[T any] interface {
	Read() (T, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc[T any] func() (T, error)

func (f ReaderFunc[T]) Read() (T, error) { return f() }

// DriverError wraps a failed sensor read or init.
type DriverError struct {
	Sensor string
	Err    error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s: %v", e.Sensor, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

type entry struct {
	name string
	read func() (any, error)
}

// Sampler reads a fixed set of sensors once per call to SampleAll.
type Sampler struct {
	entries []entry
}

// Add registers r under name. name is also the topic suffix the sample is
// published on.
func Add[T any](s *Sampler, name string, r Reader[T]) {
	s.entries = append(s.entries, entry{
		name: name,
		read: func() (any, error) { return r.Read() },
	})
}

// Names lists the registered sensors.
func (s *Sampler) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// SampleAll reads every sensor once, passing each good sample to emit. A
// failing sensor is logged and skipped; the rest are still read. The
// returned slice holds one error per failure.
func (s *Sampler) SampleAll(emit func(name string, sample any)) []error {
	var errs []error
	for _, e := range s.entries {
		sample, err := e.read()
		if err != nil {
			log.Printf("sensors: %s read error: %v", e.name, err)
			errs = append(errs, err)
			continue
		}
		emit(e.name, sample)
	}
	return errs
}

func writeReg(d *i2c.Dev, reg, v byte) error {
	return d.Tx([]byte{reg, v}, nil)
}

func readRegs(d *i2c.Dev, reg byte, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := d.Tx([]byte{reg}, b); err != nil {
		return nil, err
	}
	return b, nil
}
