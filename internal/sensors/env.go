package sensors

import (
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/relabs-tech/swarm_controller/internal/env"
)

const (
	BMP280Addr = 0x77
	SHT31Addr  = 0x44

	DefaultSeaLevelHPa = 1013.25
)

// EnvSensor is implemented by *bmxx80.Dev and *SHT31.
type EnvSensor interface {
	Sense(e *physic.Env) error
}

// NewBMP280 opens the barometer through the bmxx80 driver.
func NewBMP280(b i2c.Bus, addr uint16) (*bmxx80.Dev, error) {
	d, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, &DriverError{Sensor: "bmp280", Err: err}
	}
	log.Printf("sensors: %s at 0x%02X ready", d, addr)
	return d, nil
}

// SHT31 is a Sensirion SHT3x humidity/temperature sensor in single-shot mode.
type SHT31 struct {
	dev   i2c.Dev
	sleep func(time.Duration)
}

// NewSHT31 does not touch the bus; the first Sense does.
func NewSHT31(b i2c.Bus, addr uint16) *SHT31 {
	return &SHT31{dev: i2c.Dev{Bus: b, Addr: addr}, sleep: time.Sleep}
}

// Sense runs one high-repeatability measurement without clock stretching.
func (s *SHT31) Sense(e *physic.Env) error {
	if err := s.dev.Tx([]byte{0x24, 0x00}, nil); err != nil {
		return &DriverError{Sensor: "sht31", Err: fmt.Errorf("measure: %w", err)}
	}
	s.sleep(15 * time.Millisecond)

	b := make([]byte, 6)
	if err := s.dev.Tx(nil, b); err != nil {
		return &DriverError{Sensor: "sht31", Err: fmt.Errorf("read: %w", err)}
	}
	if crc8(b[0:2]) != b[2] || crc8(b[3:5]) != b[5] {
		return &DriverError{Sensor: "sht31", Err: fmt.Errorf("crc mismatch in % X", b)}
	}

	rawT := int64(b[0])<<8 | int64(b[1])
	rawH := int64(b[3])<<8 | int64(b[4])
	milliC := -45000 + 175000*rawT/65535
	e.Temperature = physic.ZeroCelsius + physic.Temperature(milliC)*physic.MilliKelvin
	e.Humidity = physic.RelativeHumidity(rawH * 100 * int64(physic.PercentRH) / 65535)
	return nil
}

func (s *SHT31) String() string { return "SHT31" }

// crc8 is the Sensirion checksum: polynomial 0x31, init 0xFF.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Environment merges the barometer with an optional humidity sensor.
type Environment struct {
	Pressure    EnvSensor
	Humidity    EnvSensor // may be nil
	SeaLevelHPa float64
}

// Read takes temperature and pressure from the barometer, humidity from the
// humidity sensor, and derives altitude from pressure.
func (en *Environment) Read() (env.Sample, error) {
	var p physic.Env
	if err := en.Pressure.Sense(&p); err != nil {
		return env.Sample{}, &DriverError{Sensor: "env", Err: fmt.Errorf("pressure: %w", err)}
	}
	hPa := float64(p.Pressure) / float64(physic.Pascal) / 100.0

	s := env.Sample{
		Source:      "env",
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Temperature: p.Temperature.Celsius(),
		Pressure:    hPa,
		Altitude:    Altitude(hPa, en.SeaLevelHPa),
	}

	if en.Humidity != nil {
		var h physic.Env
		if err := en.Humidity.Sense(&h); err != nil {
			return env.Sample{}, &DriverError{Sensor: "env", Err: fmt.Errorf("humidity: %w", err)}
		}
		s.Humidity = float64(h.Humidity) / float64(physic.PercentRH)
	}
	return s, nil
}

// Altitude is the international barometric formula in meters. A
// non-positive sea level falls back to the standard atmosphere.
func Altitude(hPa, seaLevelHPa float64) float64 {
	if seaLevelHPa <= 0 {
		seaLevelHPa = DefaultSeaLevelHPa
	}
	return 44330.0 * (1.0 - math.Pow(hPa/seaLevelHPa, 0.1903))
}
