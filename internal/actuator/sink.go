// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"
	"log"

	"github.com/relabs-tech/swarm_controller/internal/bus"
	"github.com/relabs-tech/swarm_controller/internal/motion"
	"github.com/relabs-tech/swarm_controller/internal/wire"
)

// DefaultAddr is the motor controller's I2C address.
const DefaultAddr = 0x08

// Sink writes velocity commands to the motor controller, one bus
// transaction per command.
type Sink struct {
	Transport bus.Transport
	Addr      uint16
	// Name prefixes log lines; usually the robot name.
	Name string
}

// NewSink returns a sink for the peripheral at addr.
func NewSink(t bus.Transport, addr uint16, name string) *Sink {
	return &Sink{Transport: t, Addr: addr, Name: name}
}

// Send encodes cmd and writes it. Bus faults come back as *bus.BusError;
// the caller decides whether the next tick retries.
func (s *Sink) Send(cmd motion.Twist2D) error {
	log.Printf("actuator: %s X Linear: %.3f Y Linear: %.3f Z Angular: %.3f",
		s.Name, cmd.LinearX, cmd.LinearY, cmd.AngularZ)

	first, body, err := wire.SplitTransaction(wire.EncodeVelocity(cmd))
	if err != nil {
		return fmt.Errorf("actuator: %w", err)
	}
	if err := s.Transport.WriteBlock(s.Addr, first, body); err != nil {
		return fmt.Errorf("actuator: send to %s: %w", s.Name, err)
	}
	return nil
}

// Publish lets a Sink act as a control.Publisher, so the waypoint controller
// can drive the bus directly when both run in one process.
func (s *Sink) Publish(cmd motion.Twist2D) error {
	return s.Send(cmd)
}

// Stop sends a zero command.
func (s *Sink) Stop() error {
	return s.Send(motion.Twist2D{})
}
