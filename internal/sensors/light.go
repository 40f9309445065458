package sensors

import (
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/swarm_controller/internal/light"
)

// APDS9960 registers.
const (
	APDS9960Addr = 0x39

	apdsEnable  = 0x80
	apdsID      = 0x92
	apdsCDataL  = 0x94 // clear, red, green, blue; 2 bytes each
	apdsPData   = 0x9C
	apdsGPEnTh  = 0xA0
	apdsGExTh   = 0xA1
	apdsGFLvl   = 0xAE
	apdsGStatus = 0xAF
	apdsGFifoU  = 0xFC

	apdsEnableAll = 0x47 // PON | AEN | PEN | GEN

	// minimum change in U-D or L-R imbalance that counts as a swipe
	gestureThreshold = 10
)

// APDS9960 is the color, proximity and gesture sensor.
type APDS9960 struct {
	dev i2c.Dev
}

// NewAPDS9960 powers on color, proximity and gesture engines.
func NewAPDS9960(b i2c.Bus, addr uint16) (*APDS9960, error) {
	d := &APDS9960{dev: i2c.Dev{Bus: b, Addr: addr}}

	id, err := readRegs(&d.dev, apdsID, 1)
	if err != nil {
		return nil, &DriverError{Sensor: "apds9960", Err: fmt.Errorf("id: %w", err)}
	}
	if id[0] != 0xAB && id[0] != 0xA8 {
		return nil, &DriverError{Sensor: "apds9960", Err: fmt.Errorf("unexpected ID 0x%02X", id[0])}
	}

	for _, w := range [][2]byte{
		{apdsEnable, 0x00},
		{apdsGPEnTh, 40},
		{apdsGExTh, 30},
		{apdsEnable, apdsEnableAll},
	} {
		if err := writeReg(&d.dev, w[0], w[1]); err != nil {
			return nil, &DriverError{Sensor: "apds9960", Err: fmt.Errorf("write 0x%02X: %w", w[0], err)}
		}
	}
	log.Printf("sensors: apds9960 at 0x%02X ready (color, proximity, gesture)", addr)
	return d, nil
}

// Read returns the color channels and the last completed gesture, if any.
func (d *APDS9960) Read() (light.Sample, error) {
	c, err := readRegs(&d.dev, apdsCDataL, 8)
	if err != nil {
		return light.Sample{}, &DriverError{Sensor: "apds9960", Err: fmt.Errorf("color: %w", err)}
	}
	ch := func(i int) uint16 { return binary.LittleEndian.Uint16(c[2*i:]) }

	g, err := d.gesture()
	if err != nil {
		return light.Sample{}, &DriverError{Sensor: "apds9960", Err: fmt.Errorf("gesture: %w", err)}
	}
	return light.Sample{
		Source:  "apds9960",
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		RGBW:    [4]uint16{ch(1), ch(2), ch(3), ch(0)},
		Gesture: g,
	}, nil
}

// ReadProximity returns the raw proximity count.
func (d *APDS9960) ReadProximity() (light.Proximity, error) {
	p, err := readRegs(&d.dev, apdsPData, 1)
	if err != nil {
		return light.Proximity{}, &DriverError{Sensor: "apds9960", Err: fmt.Errorf("proximity: %w", err)}
	}
	return light.Proximity{
		Time: time.Now().UTC().Format(time.RFC3339Nano),
		Data: float64(p[0]),
	}, nil
}

func (d *APDS9960) gesture() (light.Gesture, error) {
	st, err := readRegs(&d.dev, apdsGStatus, 1)
	if err != nil {
		return light.GestureNone, err
	}
	if st[0]&0x01 == 0 {
		return light.GestureNone, nil
	}
	lvl, err := readRegs(&d.dev, apdsGFLvl, 1)
	if err != nil {
		return light.GestureNone, err
	}
	if lvl[0] == 0 {
		return light.GestureNone, nil
	}
	raw, err := readRegs(&d.dev, apdsGFifoU, 4*int(lvl[0]))
	if err != nil {
		return light.GestureNone, err
	}
	sets := make([][4]byte, lvl[0])
	for i := range sets {
		copy(sets[i][:], raw[4*i:])
	}
	return decodeGesture(sets), nil
}

// decodeGesture compares the up/down and left/right imbalance at the start
// and end of a FIFO burst. Each dataset is U, D, L, R.
func decodeGesture(sets [][4]byte) light.Gesture {
	if len(sets) < 2 {
		return light.GestureNone
	}
	ud := func(s [4]byte) int { return int(s[0]) - int(s[1]) }
	lr := func(s [4]byte) int { return int(s[2]) - int(s[3]) }
	first, last := sets[0], sets[len(sets)-1]
	dUD := ud(last) - ud(first)
	dLR := lr(last) - lr(first)

	if abs(dUD) < gestureThreshold && abs(dLR) < gestureThreshold {
		return light.GestureNone
	}
	if abs(dUD) >= abs(dLR) {
		if dUD > 0 {
			return light.GestureUp
		}
		return light.GestureDown
	}
	if dLR > 0 {
		return light.GestureLeft
	}
	return light.GestureRight
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
