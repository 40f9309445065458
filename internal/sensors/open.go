package sensors

import (
	"log"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/swarm_controller/internal/config"
	"github.com/relabs-tech/swarm_controller/internal/env"
	"github.com/relabs-tech/swarm_controller/internal/imu"
	"github.com/relabs-tech/swarm_controller/internal/light"
)

// Open builds a Sampler for every sensor listed in cfg.Sensors. A sensor that
// fails to initialize is logged and left out so the robot still drives.
func Open(b i2c.Bus, cfg *config.Config) *Sampler {
	s := &Sampler{}
	var apds *APDS9960

	for _, name := range cfg.Sensors {
		switch name {
		case "imu":
			d, err := NewLSM6DS33(b, cfg.IMUI2CAddr)
			if err != nil {
				log.Printf("sensors: skipping imu: %v", err)
				continue
			}
			Add[imu.Sample](s, name, d)
		case "mag":
			d, err := NewLIS3MDL(b, cfg.MagI2CAddr)
			if err != nil {
				log.Printf("sensors: skipping mag: %v", err)
				continue
			}
			Add[imu.MagSample](s, name, d)
		case "light", "proximity":
			if apds == nil {
				d, err := NewAPDS9960(b, cfg.LightI2CAddr)
				if err != nil {
					log.Printf("sensors: skipping %s: %v", name, err)
					continue
				}
				apds = d
			}
			if name == "light" {
				Add[light.Sample](s, name, apds)
			} else {
				Add[light.Proximity](s, name, ReaderFunc[light.Proximity](apds.ReadProximity))
			}
		case "env":
			bmp, err := NewBMP280(b, cfg.BMPI2CAddr)
			if err != nil {
				log.Printf("sensors: skipping env: %v", err)
				continue
			}
			en := &Environment{Pressure: bmp, SeaLevelHPa: cfg.SeaLevelPressureHPa}
			if cfg.SHTI2CAddr != 0 {
				en.Humidity = NewSHT31(b, cfg.SHTI2CAddr)
			}
			Add[env.Sample](s, name, en)
		default:
			log.Printf("sensors: unknown sensor %q", name)
		}
	}
	log.Printf("sensors: sampling %v", s.Names())
	return s
}
