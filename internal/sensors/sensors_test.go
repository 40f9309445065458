package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/swarm_controller/internal/config"
	"github.com/relabs-tech/swarm_controller/internal/imu"
	"github.com/relabs-tech/swarm_controller/internal/light"
)

func TestSampleAllSkipsFailures(t *testing.T) {
	s := &Sampler{}
	Add[int](s, "first", ReaderFunc[int](func() (int, error) { return 1, nil }))
	Add[int](s, "broken", ReaderFunc[int](func() (int, error) {
		return 0, &DriverError{Sensor: "broken", Err: errors.New("nack")}
	}))
	Add[string](s, "last", ReaderFunc[string](func() (string, error) { return "ok", nil }))

	got := map[string]any{}
	errs := s.SampleAll(func(name string, sample any) { got[name] = sample })

	assert.Equal(t, []string{"first", "broken", "last"}, s.Names())
	assert.Equal(t, map[string]any{"first": 1, "last": "ok"}, got)
	require.Len(t, errs, 1)
	var de *DriverError
	require.ErrorAs(t, errs[0], &de)
	assert.Equal(t, "broken", de.Sensor)
}

func TestLSM6DS33(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: LSM6DS33Addr, W: []byte{0x0F}, R: []byte{0x69}},
		{Addr: LSM6DS33Addr, W: []byte{0x10, 0x48}},
		{Addr: LSM6DS33Addr, W: []byte{0x11, 0x40}},
		{Addr: LSM6DS33Addr, W: []byte{0x12, 0x44}},
		{Addr: LSM6DS33Addr, W: []byte{0x22}, R: []byte{
			0xE8, 0x03, 0x00, 0x00, 0x18, 0xFC, // gyro 1000, 0, -1000
			0x00, 0x00, 0x00, 0x00, 0x05, 0x20, // accel 0, 0, 8197
		}},
	}}

	d, err := NewLSM6DS33(bus, LSM6DS33Addr)
	require.NoError(t, err)
	s, err := d.Read()
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	assert.InDelta(t, 0.15272, s.AngularVelocity.X, 1e-4)
	assert.Zero(t, s.AngularVelocity.Y)
	assert.InDelta(t, -0.15272, s.AngularVelocity.Z, 1e-4)
	assert.InDelta(t, 9.807, s.LinearAcceleration.Z, 1e-2)
	assert.Equal(t, 1.0, s.Orientation.W)
	assert.Equal(t, "lsm6ds33", s.Source)
}

func TestLSM6DS33WrongID(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: LSM6DS33Addr, W: []byte{0x0F}, R: []byte{0x00}},
	}}
	_, err := NewLSM6DS33(bus, LSM6DS33Addr)
	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "lsm6ds33", de.Sensor)
}

func TestLIS3MDL(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: LIS3MDLAddr, W: []byte{0x0F}, R: []byte{0x3D}},
		{Addr: LIS3MDLAddr, W: []byte{0x20, 0x70}},
		{Addr: LIS3MDLAddr, W: []byte{0x21, 0x00}},
		{Addr: LIS3MDLAddr, W: []byte{0x22, 0x00}},
		{Addr: LIS3MDLAddr, W: []byte{0x23, 0x0C}},
		{Addr: LIS3MDLAddr, W: []byte{0xA8}, R: []byte{0xBA, 0x1A, 0x00, 0x00, 0x46, 0xE5}},
	}}

	d, err := NewLIS3MDL(bus, LIS3MDLAddr)
	require.NoError(t, err)
	m, err := d.Read()
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	// 6842 LSB = 1 gauss = 100 µT
	assert.InDelta(t, 100.0, m.Field.X, 1e-9)
	assert.Zero(t, m.Field.Y)
	assert.InDelta(t, -100.0, m.Field.Z, 1e-9)
}

func TestAPDS9960(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: APDS9960Addr, W: []byte{0x92}, R: []byte{0xAB}},
		{Addr: APDS9960Addr, W: []byte{0x80, 0x00}},
		{Addr: APDS9960Addr, W: []byte{0xA0, 40}},
		{Addr: APDS9960Addr, W: []byte{0xA1, 30}},
		{Addr: APDS9960Addr, W: []byte{0x80, 0x47}},
		// color: clear, red, green, blue
		{Addr: APDS9960Addr, W: []byte{0x94}, R: []byte{100, 0, 10, 0, 20, 0, 30, 0}},
		{Addr: APDS9960Addr, W: []byte{0xAF}, R: []byte{0x01}},
		{Addr: APDS9960Addr, W: []byte{0xAE}, R: []byte{2}},
		{Addr: APDS9960Addr, W: []byte{0xFC}, R: []byte{50, 50, 50, 50, 80, 20, 50, 50}},
		{Addr: APDS9960Addr, W: []byte{0x9C}, R: []byte{200}},
	}}

	d, err := NewAPDS9960(bus, APDS9960Addr)
	require.NoError(t, err)

	s, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, [4]uint16{10, 20, 30, 100}, s.RGBW)
	assert.Equal(t, light.GestureUp, s.Gesture)

	p, err := d.ReadProximity()
	require.NoError(t, err)
	assert.Equal(t, 200.0, p.Data)
	require.NoError(t, bus.Close())
}

func TestAPDS9960NoGesture(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: APDS9960Addr, W: []byte{0x94}, R: make([]byte, 8)},
		{Addr: APDS9960Addr, W: []byte{0xAF}, R: []byte{0x00}},
	}}
	d := &APDS9960{}
	d.dev.Bus = bus
	d.dev.Addr = APDS9960Addr

	s, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, light.GestureNone, s.Gesture)
	require.NoError(t, bus.Close())
}

func TestDecodeGesture(t *testing.T) {
	flat := [4]byte{50, 50, 50, 50}
	cases := []struct {
		name string
		last [4]byte
		want light.Gesture
	}{
		{"up", [4]byte{80, 20, 50, 50}, light.GestureUp},
		{"down", [4]byte{20, 80, 50, 50}, light.GestureDown},
		{"left", [4]byte{50, 50, 90, 10}, light.GestureLeft},
		{"right", [4]byte{50, 50, 10, 90}, light.GestureRight},
		{"below threshold", [4]byte{54, 50, 50, 47}, light.GestureNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, decodeGesture([][4]byte{flat, c.last}))
		})
	}
	assert.Equal(t, light.GestureNone, decodeGesture([][4]byte{flat}))
	assert.Equal(t, "left", light.GestureLeft.String())
}

func TestSHT31(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: SHT31Addr, W: []byte{0x24, 0x00}},
		{Addr: SHT31Addr, R: []byte{0x66, 0x66, 0x93, 0x80, 0x00, 0xA2}},
	}}
	s := NewSHT31(bus, SHT31Addr)
	var slept time.Duration
	s.sleep = func(d time.Duration) { slept += d }

	var e physic.Env
	require.NoError(t, s.Sense(&e))
	require.NoError(t, bus.Close())

	assert.Equal(t, 15*time.Millisecond, slept)
	assert.InDelta(t, 25.0, e.Temperature.Celsius(), 1e-6)
	assert.InDelta(t, 50.0, float64(e.Humidity)/float64(physic.PercentRH), 0.01)
}

func TestSHT31BadCRC(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: SHT31Addr, W: []byte{0x24, 0x00}},
		{Addr: SHT31Addr, R: []byte{0x66, 0x66, 0x00, 0x80, 0x00, 0xA2}},
	}}
	s := NewSHT31(bus, SHT31Addr)
	s.sleep = func(time.Duration) {}

	var e physic.Env
	var de *DriverError
	require.ErrorAs(t, s.Sense(&e), &de)
	assert.Equal(t, "sht31", de.Sensor)
}

func TestCRC8(t *testing.T) {
	assert.Equal(t, byte(0x92), crc8([]byte{0xBE, 0xEF}))
}

type fakeEnv struct {
	env physic.Env
	err error
}

func (f *fakeEnv) Sense(e *physic.Env) error {
	if f.err != nil {
		return f.err
	}
	*e = f.env
	return nil
}

func TestEnvironment(t *testing.T) {
	baro := &fakeEnv{env: physic.Env{
		Temperature: physic.ZeroCelsius + 20*physic.Kelvin,
		Pressure:    1000 * 100 * physic.Pascal,
	}}
	hum := &fakeEnv{env: physic.Env{Humidity: 40 * physic.PercentRH}}

	en := &Environment{Pressure: baro, Humidity: hum, SeaLevelHPa: 1013.25}
	s, err := en.Read()
	require.NoError(t, err)

	assert.InDelta(t, 20.0, s.Temperature, 1e-6)
	assert.InDelta(t, 1000.0, s.Pressure, 1e-6)
	assert.InDelta(t, 40.0, s.Humidity, 1e-6)
	assert.InDelta(t, 110.9, s.Altitude, 0.1)
}

func TestEnvironmentFailures(t *testing.T) {
	en := &Environment{Pressure: &fakeEnv{err: errors.New("bus down")}}
	_, err := en.Read()
	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), "pressure")

	en = &Environment{Pressure: &fakeEnv{}, Humidity: &fakeEnv{err: errors.New("nack")}}
	_, err = en.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "humidity")
}

func TestAltitudeAtSeaLevel(t *testing.T) {
	assert.InDelta(t, 0.0, Altitude(1013.25, 0), 1e-9)
}

func TestOpenSkipsFailedSensors(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x6A, W: []byte{0x0F}, R: []byte{0x69}},
		{Addr: 0x6A, W: []byte{0x10, 0x48}},
		{Addr: 0x6A, W: []byte{0x11, 0x40}},
		{Addr: 0x6A, W: []byte{0x12, 0x44}},
		{Addr: 0x1C, W: []byte{0x0F}, R: []byte{0xFF}}, // not a LIS3MDL
	}}
	cfg := config.Defaults()
	cfg.Sensors = []string{"imu", "mag"}

	s := Open(bus, cfg)
	assert.Equal(t, []string{"imu"}, s.Names())
	require.NoError(t, bus.Close())

	var _ Reader[imu.Sample] = &LSM6DS33{}
}
