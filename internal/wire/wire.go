// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire encodes velocity commands for, and decodes odometry from, the
// motor-controller microcontroller. All floats are IEEE-754 single precision,
// little-endian, matching the firmware's native layout.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/swarm_controller/internal/motion"
)

const (
	// OdometrySize is the telemetry block: 5 float32 fields.
	OdometrySize = 5 * 4
	// VelocitySize is 3 float32 fields plus the trailing pad byte.
	VelocitySize = 3*4 + 1
	// MaxTransaction is the largest write the peripheral accepts,
	// register byte included.
	MaxTransaction = 20
	// MaxBody is what remains after the register byte.
	MaxBody = MaxTransaction - 1
)

// Odometry field indexes, in firmware order.
const (
	FieldPosX = iota
	FieldPosY
	FieldHeading
	FieldSpeed
	FieldAngularZ
)

// OdometryBlock is the raw telemetry: [pos_x, pos_y, heading, speed, angular_z].
type OdometryBlock [5]float32

// FormatError reports a payload whose size does not match the protocol.
type FormatError struct {
	What string
	Want int
	Got  int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("wire: %s: want %d bytes, got %d", e.What, e.Want, e.Got)
}

// ErrEmptyBlock is returned when splitting a zero-length block.
var ErrEmptyBlock = errors.New("wire: empty block")

// EncodeVelocity packs linear_x, linear_y and angular_z and appends one zero
// byte. The bus drops the last byte of every write, so the pad is what gets
// lost instead of angular_z's high byte.
func EncodeVelocity(v motion.Twist2D) []byte {
	b := make([]byte, VelocitySize)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.LinearX)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.LinearY)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.AngularZ)))
	b[12] = 0
	return b
}

// DecodeVelocity is the inverse of EncodeVelocity. The pad byte is optional.
func DecodeVelocity(b []byte) (motion.Twist2D, error) {
	if len(b) < VelocitySize-1 {
		return motion.Twist2D{}, &FormatError{What: "velocity block", Want: VelocitySize - 1, Got: len(b)}
	}
	return motion.Twist2D{
		LinearX:  float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))),
		LinearY:  float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		AngularZ: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	}, nil
}

// DecodeOdometry reads the five telemetry floats. Bytes past the first 20
// are ignored; fewer than 20 is a FormatError.
func DecodeOdometry(b []byte) (OdometryBlock, error) {
	var o OdometryBlock
	if len(b) < OdometrySize {
		return o, &FormatError{What: "odometry block", Want: OdometrySize, Got: len(b)}
	}
	for i := range o {
		o[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return o, nil
}

// EncodeOdometry is the firmware side of DecodeOdometry.
func EncodeOdometry(o OdometryBlock) []byte {
	b := make([]byte, OdometrySize)
	for i, f := range o {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// SplitTransaction separates an encoded block into the register byte, which
// the bus sends as the command/address byte, and the body that follows it.
func SplitTransaction(b []byte) (byte, []byte, error) {
	if len(b) == 0 {
		return 0, nil, ErrEmptyBlock
	}
	if len(b) > MaxTransaction {
		return 0, nil, &FormatError{What: "transaction", Want: MaxTransaction, Got: len(b)}
	}
	return b[0], b[1:], nil
}
