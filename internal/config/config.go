package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Bus kinds accepted by BUS_KIND.
const (
	BusI2C    = "i2c"
	BusSerial = "serial"
	BusSim    = "sim"
)

// Sensor names accepted by SENSORS. Each is also the topic leaf its samples
// are published on.
var SensorNames = []string{"imu", "mag", "light", "proximity", "env"}

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker            string
	MQTTClientIDRobot     string
	MQTTClientIDNavigator string
	MQTTClientIDWeb       string
	MQTTClientIDConsole   string

	// Topics
	TopicPrefix string // per-robot topics are <prefix>/<robot>/<leaf>
	TopicMoveTo string

	// Robots
	RobotName string   // the robot this robot_controller drives
	Robots    []string // roster the position controller steers

	// Peripheral link
	BusKind                string
	I2CBus                 string // "" opens the first bus
	PeripheralI2CAddr      uint16
	PeripheralReadRegister byte
	SerialPort             string
	SerialBaudRate         int

	// Timing (milliseconds)
	ControlInterval int
	OdomInterval    int
	SensorInterval  int

	// Waypoint controller
	VMax             float64 // m/s
	OmegaMax         float64 // rad/s
	ArrivalThreshold float64 // m

	// Auxiliary sensors
	Sensors             []string
	IMUI2CAddr          uint16
	MagI2CAddr          uint16
	LightI2CAddr        uint16
	BMPI2CAddr          uint16
	SHTI2CAddr          uint16 // 0 disables humidity
	SeaLevelPressureHPa float64

	// Web Server
	WebServerPort int
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config with every optional key filled in.
func Defaults() *Config {
	return &Config{
		MQTTClientIDRobot:     "swarm-robot",
		MQTTClientIDNavigator: "swarm-navigator",
		MQTTClientIDWeb:       "swarm-web",
		MQTTClientIDConsole:   "swarm-console",

		TopicPrefix: "swarm",
		TopicMoveTo: "swarm/move_to",

		BusKind:                BusI2C,
		PeripheralI2CAddr:      0x08,
		PeripheralReadRegister: 0x00,
		SerialBaudRate:         115200,

		ControlInterval: 100,
		OdomInterval:    100,
		SensorInterval:  1000,

		VMax:             0.5,
		OmegaMax:         0.5,
		ArrivalThreshold: 0.05,

		IMUI2CAddr:          0x6A,
		MagI2CAddr:          0x1C,
		LightI2CAddr:        0x39,
		BMPI2CAddr:          0x77,
		SHTI2CAddr:          0x44,
		SeaLevelPressureHPa: 1013.25,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Defaults. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if len(cfg.Robots) == 0 && cfg.RobotName != "" {
		cfg.Robots = []string{cfg.RobotName}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_ROBOT":
		c.MQTTClientIDRobot = value
	case "MQTT_CLIENT_ID_NAVIGATOR":
		c.MQTTClientIDNavigator = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.Trim(value, "/")
	case "TOPIC_MOVE_TO":
		c.TopicMoveTo = value

	// Robots
	case "ROBOT_NAME":
		if strings.ContainsAny(value, "/+#") {
			return fmt.Errorf("ROBOT_NAME %q must not contain MQTT topic characters", value)
		}
		c.RobotName = value
	case "ROBOTS":
		names := splitList(value)
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			if strings.ContainsAny(n, "/+#") {
				return fmt.Errorf("ROBOTS entry %q must not contain MQTT topic characters", n)
			}
			if seen[n] {
				return fmt.Errorf("ROBOTS lists %q twice", n)
			}
			seen[n] = true
		}
		c.Robots = names

	// Peripheral link
	case "BUS_KIND":
		switch value {
		case BusI2C, BusSerial, BusSim:
			c.BusKind = value
		default:
			return fmt.Errorf("BUS_KIND must be one of i2c, serial, sim, got %q", value)
		}
	case "I2C_BUS":
		c.I2CBus = value
	case "PERIPHERAL_I2C_ADDR":
		addr, err := parseI2CAddr(key, value)
		if err != nil {
			return err
		}
		c.PeripheralI2CAddr = addr
	case "PERIPHERAL_READ_REGISTER":
		reg, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid PERIPHERAL_READ_REGISTER %q: %w", value, err)
		}
		c.PeripheralReadRegister = byte(reg)
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		if rate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", rate)
		}
		c.SerialBaudRate = rate

	// Timing
	case "CONTROL_INTERVAL":
		return setInterval(key, value, &c.ControlInterval)
	case "ODOM_INTERVAL":
		return setInterval(key, value, &c.OdomInterval)
	case "SENSOR_INTERVAL":
		return setInterval(key, value, &c.SensorInterval)

	// Waypoint controller
	case "V_MAX":
		return setPositive(key, value, &c.VMax)
	case "OMEGA_MAX":
		return setPositive(key, value, &c.OmegaMax)
	case "ARRIVAL_THRESHOLD":
		return setPositive(key, value, &c.ArrivalThreshold)

	// Auxiliary sensors
	case "SENSORS":
		names := splitList(value)
		for _, n := range names {
			if !isSensorName(n) {
				return fmt.Errorf("SENSORS: unknown sensor %q (want any of %s)", n, strings.Join(SensorNames, ", "))
			}
		}
		c.Sensors = names
	case "IMU_I2C_ADDR":
		return setAddr(key, value, &c.IMUI2CAddr)
	case "MAG_I2C_ADDR":
		return setAddr(key, value, &c.MagI2CAddr)
	case "LIGHT_I2C_ADDR":
		return setAddr(key, value, &c.LightI2CAddr)
	case "BMP_I2C_ADDR":
		return setAddr(key, value, &c.BMPI2CAddr)
	case "SHT_I2C_ADDR":
		if value == "0" {
			c.SHTI2CAddr = 0
			return nil
		}
		return setAddr(key, value, &c.SHTI2CAddr)
	case "SEA_LEVEL_PRESSURE_HPA":
		return setPositive(key, value, &c.SeaLevelPressureHPa)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if len(c.Robots) == 0 {
		return fmt.Errorf("ROBOTS or ROBOT_NAME is required")
	}
	if c.TopicMoveTo == "" {
		return fmt.Errorf("TOPIC_MOVE_TO must not be empty")
	}
	if c.BusKind == BusSerial && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required when BUS_KIND=serial")
	}
	return nil
}

// RobotTopic returns <prefix>/<robot>/<leaf>.
func (c *Config) RobotTopic(robot, leaf string) string {
	if c.TopicPrefix == "" {
		return robot + "/" + leaf
	}
	return c.TopicPrefix + "/" + robot + "/" + leaf
}

// SensorTopic returns <prefix>/<robot>/sensors/<name>.
func (c *Config) SensorTopic(robot, name string) string {
	return c.RobotTopic(robot, "sensors/"+name)
}

func (c *Config) ControlPeriod() time.Duration {
	return time.Duration(c.ControlInterval) * time.Millisecond
}

func (c *Config) OdomPeriod() time.Duration {
	return time.Duration(c.OdomInterval) * time.Millisecond
}

func (c *Config) SensorPeriod() time.Duration {
	return time.Duration(c.SensorInterval) * time.Millisecond
}

// SensorEnabled reports whether name is listed in SENSORS.
func (c *Config) SensorEnabled(name string) bool {
	for _, s := range c.Sensors {
		if s == name {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isSensorName(n string) bool {
	for _, s := range SensorNames {
		if s == n {
			return true
		}
	}
	return false
}

func parseI2CAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr < 0x03 || addr > 0x77 {
		return 0, fmt.Errorf("%s must be a 7-bit address 0x03-0x77, got 0x%02X", key, addr)
	}
	return uint16(addr), nil
}

func setAddr(key, value string, dst *uint16) error {
	addr, err := parseI2CAddr(key, value)
	if err != nil {
		return err
	}
	*dst = addr
	return nil
}

func setInterval(key, value string, dst *int) error {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms <= 0 {
		return fmt.Errorf("%s must be a positive number of milliseconds, got %d", key, ms)
	}
	*dst = ms
	return nil
}

func setPositive(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if !(v > 0) {
		return fmt.Errorf("%s must be positive, got %v", key, v)
	}
	*dst = v
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return nil without reloading.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
