// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/swarm_controller/internal/imu"
	"github.com/relabs-tech/swarm_controller/internal/orientation"
)

// LSM6DS33 registers.
const (
	LSM6DS33Addr = 0x6A

	lsm6WhoAmI  = 0x0F
	lsm6ID      = 0x69
	lsm6Ctrl1XL = 0x10
	lsm6Ctrl2G  = 0x11
	lsm6Ctrl3C  = 0x12
	lsm6OutXG   = 0x22 // gyro X/Y/Z then accel X/Y/Z, 12 bytes

	standardGravity = 9.80665
	lsm6AccelScale  = 0.122e-3 * standardGravity // ±4 g: 0.122 mg/LSB
	lsm6GyroScale   = 8.75e-3 * math.Pi / 180.0  // ±250 dps: 8.75 mdps/LSB
)

// LSM6DS33 is the 6-axis accelerometer + gyroscope.
type LSM6DS33 struct {
	dev i2c.Dev
}

// NewLSM6DS33 checks the chip ID and configures 104 Hz output, ±4 g and
// ±250 dps with block data update and register auto-increment.
func NewLSM6DS33(b i2c.Bus, addr uint16) (*LSM6DS33, error) {
	d := &LSM6DS33{dev: i2c.Dev{Bus: b, Addr: addr}}

	id, err := readRegs(&d.dev, lsm6WhoAmI, 1)
	if err != nil {
		return nil, &DriverError{Sensor: "lsm6ds33", Err: fmt.Errorf("who_am_i: %w", err)}
	}
	if id[0] != lsm6ID {
		return nil, &DriverError{Sensor: "lsm6ds33", Err: fmt.Errorf("unexpected WHO_AM_I 0x%02X", id[0])}
	}

	for _, w := range [][2]byte{
		{lsm6Ctrl1XL, 0x48},
		{lsm6Ctrl2G, 0x40},
		{lsm6Ctrl3C, 0x44},
	} {
		if err := writeReg(&d.dev, w[0], w[1]); err != nil {
			return nil, &DriverError{Sensor: "lsm6ds33", Err: fmt.Errorf("write 0x%02X: %w", w[0], err)}
		}
	}
	log.Printf("sensors: lsm6ds33 at 0x%02X ready (104 Hz, ±4 g, ±250 dps)", addr)
	return d, nil
}

// Read returns acceleration in m/s² and angular velocity in rad/s.
func (d *LSM6DS33) Read() (imu.Sample, error) {
	b, err := readRegs(&d.dev, lsm6OutXG, 12)
	if err != nil {
		return imu.Sample{}, &DriverError{Sensor: "lsm6ds33", Err: err}
	}
	axis := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(b[2*i:])))
	}
	return imu.Sample{
		Source:      "lsm6ds33",
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Orientation: orientation.Quaternion{W: 1},
		AngularVelocity: imu.Vector3{
			X: axis(0) * lsm6GyroScale,
			Y: axis(1) * lsm6GyroScale,
			Z: axis(2) * lsm6GyroScale,
		},
		LinearAcceleration: imu.Vector3{
			X: axis(3) * lsm6AccelScale,
			Y: axis(4) * lsm6AccelScale,
			Z: axis(5) * lsm6AccelScale,
		},
	}, nil
}

// LIS3MDL registers.
const (
	LIS3MDLAddr = 0x1C

	lis3WhoAmI   = 0x0F
	lis3ID       = 0x3D
	lis3CtrlReg1 = 0x20
	lis3CtrlReg2 = 0x21
	lis3CtrlReg3 = 0x22
	lis3CtrlReg4 = 0x23
	lis3OutXL    = 0x28
	lis3AutoInc  = 0x80

	lis3GaussPerLSB    = 1.0 / 6842.0 // ±4 gauss
	microTeslaPerGauss = 100.0
)

// LIS3MDL is the 3-axis magnetometer.
type LIS3MDL struct {
	dev i2c.Dev
}

// NewLIS3MDL configures ultra-high-performance mode at 10 Hz, ±4 gauss,
// continuous conversion.
func NewLIS3MDL(b i2c.Bus, addr uint16) (*LIS3MDL, error) {
	d := &LIS3MDL{dev: i2c.Dev{Bus: b, Addr: addr}}

	id, err := readRegs(&d.dev, lis3WhoAmI, 1)
	if err != nil {
		return nil, &DriverError{Sensor: "lis3mdl", Err: fmt.Errorf("who_am_i: %w", err)}
	}
	if id[0] != lis3ID {
		return nil, &DriverError{Sensor: "lis3mdl", Err: fmt.Errorf("unexpected WHO_AM_I 0x%02X", id[0])}
	}

	for _, w := range [][2]byte{
		{lis3CtrlReg1, 0x70},
		{lis3CtrlReg2, 0x00},
		{lis3CtrlReg3, 0x00},
		{lis3CtrlReg4, 0x0C},
	} {
		if err := writeReg(&d.dev, w[0], w[1]); err != nil {
			return nil, &DriverError{Sensor: "lis3mdl", Err: fmt.Errorf("write 0x%02X: %w", w[0], err)}
		}
	}
	log.Printf("sensors: lis3mdl at 0x%02X ready (10 Hz, ±4 gauss)", addr)
	return d, nil
}

// Read returns the field in µT.
func (d *LIS3MDL) Read() (imu.MagSample, error) {
	b, err := readRegs(&d.dev, lis3OutXL|lis3AutoInc, 6)
	if err != nil {
		return imu.MagSample{}, &DriverError{Sensor: "lis3mdl", Err: err}
	}
	axis := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(b[2*i:]))) * lis3GaussPerLSB * microTeslaPerGauss
	}
	return imu.MagSample{
		Source: "lis3mdl",
		Time:   time.Now().UTC().Format(time.RFC3339Nano),
		Field:  imu.Vector3{X: axis(0), Y: axis(1), Z: axis(2)},
	}, nil
}
