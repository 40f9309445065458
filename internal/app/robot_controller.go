// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/swarm_controller/internal/actuator"
	"github.com/relabs-tech/swarm_controller/internal/bus"
	"github.com/relabs-tech/swarm_controller/internal/config"
	"github.com/relabs-tech/swarm_controller/internal/motion"
	"github.com/relabs-tech/swarm_controller/internal/odometry"
	"github.com/relabs-tech/swarm_controller/internal/sensors"
	"github.com/relabs-tech/swarm_controller/internal/wire"
)

// Robot bridges one robot's peripheral to MQTT: cmd_vel in, odometry and
// sensor samples out. Run owns the transport; the cmd_vel handler only
// forwards into a channel.
type Robot struct {
	Name      string
	Transport bus.Transport
	Addr      uint16
	Sink      *actuator.Sink
	Sampler   *sensors.Sampler // nil when no sensors are configured

	cfg  *config.Config
	msgr Messenger
	cmds chan motion.Twist2D
	now  func() time.Time
}

// NewRobot wires a robot named cfg.RobotName to t.
func NewRobot(cfg *config.Config, t bus.Transport, sampler *sensors.Sampler, m Messenger) *Robot {
	return &Robot{
		Name:      cfg.RobotName,
		Transport: t,
		Addr:      cfg.PeripheralI2CAddr,
		Sink:      actuator.NewSink(t, cfg.PeripheralI2CAddr, cfg.RobotName),
		Sampler:   sampler,
		cfg:       cfg,
		msgr:      m,
		cmds:      make(chan motion.Twist2D, 16),
		now:       time.Now,
	}
}

// Subscribe listens on this robot's cmd_vel topic.
func (r *Robot) Subscribe() error {
	return r.msgr.Subscribe(r.cfg.RobotTopic(r.Name, "cmd_vel"), func(_ string, payload []byte) {
		r.HandleCmdVel(payload)
	})
}

// HandleCmdVel decodes a Twist payload and queues it for the bus. A full
// queue drops the command; the next one supersedes it anyway.
func (r *Robot) HandleCmdVel(payload []byte) {
	var tw odometry.Twist
	if err := json.Unmarshal(payload, &tw); err != nil {
		log.Printf("robot: %s cmd_vel unmarshal error: %v", r.Name, err)
		return
	}
	cmd := motion.Twist2D{LinearX: tw.Linear.X, LinearY: tw.Linear.Y, AngularZ: tw.Angular.Z}
	select {
	case r.cmds <- cmd:
	default:
		log.Printf("robot: %s cmd_vel queue full, dropping command", r.Name)
	}
}

// PublishOdometry reads one telemetry block and publishes it on the odom
// topic. A failed read drops this sample only.
func (r *Robot) PublishOdometry() error {
	raw, err := r.Transport.ReadBlock(r.Addr, wire.OdometrySize)
	if err != nil {
		return fmt.Errorf("robot: %s odometry read: %w", r.Name, err)
	}
	block, err := wire.DecodeOdometry(raw)
	if err != nil {
		return fmt.Errorf("robot: %s odometry decode: %w", r.Name, err)
	}
	payload, err := json.Marshal(odometry.NewMessage(r.Name, r.now(), block))
	if err != nil {
		return fmt.Errorf("robot: %s odometry marshal: %w", r.Name, err)
	}
	return r.msgr.Publish(r.cfg.RobotTopic(r.Name, "odom"), payload)
}

// PublishSensors reads every configured sensor once and publishes each good
// sample under sensors/<name>.
func (r *Robot) PublishSensors() {
	if r.Sampler == nil {
		return
	}
	r.Sampler.SampleAll(func(name string, sample any) {
		payload, err := json.Marshal(sample)
		if err != nil {
			log.Printf("robot: %s %s marshal error: %v", r.Name, name, err)
			return
		}
		if err := r.msgr.Publish(r.cfg.SensorTopic(r.Name, name), payload); err != nil {
			log.Printf("robot: %v", err)
		}
	})
}

// Run serves commands and telemetry until ctx is done, then stops the
// motors.
func (r *Robot) Run(ctx context.Context) error {
	odomTicker := time.NewTicker(r.cfg.OdomPeriod())
	defer odomTicker.Stop()
	sensorTicker := time.NewTicker(r.cfg.SensorPeriod())
	defer sensorTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("robot: %s stopping motors", r.Name)
			if err := r.Sink.Stop(); err != nil {
				log.Printf("robot: %s stop failed: %v", r.Name, err)
				return err
			}
			return nil
		case cmd := <-r.cmds:
			if err := r.Sink.Send(cmd); err != nil {
				log.Printf("robot: %v", err)
			}
		case <-odomTicker.C:
			if err := r.PublishOdometry(); err != nil {
				log.Printf("%v", err)
			}
		case <-sensorTicker.C:
			r.PublishSensors()
		}
	}
}

// openTransport builds the peripheral link for cfg.BusKind. The returned
// i2c.Bus is non-nil when an I2C bus was opened, so sensors can share it.
func openTransport(cfg *config.Config) (bus.Transport, i2c.BusCloser, func(), error) {
	switch cfg.BusKind {
	case config.BusSim:
		log.Printf("robot: using simulated peripheral at 0x%02X", cfg.PeripheralI2CAddr)
		return bus.NewSim(cfg.PeripheralI2CAddr, 0), nil, func() {}, nil
	case config.BusSerial:
		s, err := bus.OpenSerial(bus.SerialOptions{
			PortName: cfg.SerialPort,
			BaudRate: cfg.SerialBaudRate,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("robot: serial bridge on %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)
		return s, nil, func() { s.Close() }, nil
	default:
		b, err := openI2C(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		t := bus.NewI2C(b)
		t.ReadRegister = cfg.PeripheralReadRegister
		log.Printf("robot: i2c peripheral at 0x%02X on %s", cfg.PeripheralI2CAddr, b)
		return t, b, func() { b.Close() }, nil
	}
}

func openI2C(cfg *config.Config) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", cfg.I2CBus, err)
	}
	return b, nil
}

// RunRobotController runs the on-robot process until SIGINT/SIGTERM.
func RunRobotController() error {
	cfg := config.Get()
	if cfg.RobotName == "" {
		return fmt.Errorf("ROBOT_NAME is required for the robot controller")
	}

	t, i2cBus, closeBus, err := openTransport(cfg)
	if err != nil {
		return err
	}
	defer closeBus()

	var sampler *sensors.Sampler
	if len(cfg.Sensors) > 0 {
		if i2cBus == nil {
			b, err := openI2C(cfg)
			if err != nil {
				log.Printf("robot: sensors disabled: %v", err)
			} else {
				defer b.Close()
				i2cBus = b
			}
		}
		if i2cBus != nil {
			sampler = sensors.Open(i2cBus, cfg)
		}
	}

	msgr, disconnect, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDRobot)
	if err != nil {
		return err
	}
	defer disconnect()

	r := NewRobot(cfg, bus.NewLocked(t), sampler, msgr)
	if err := r.Subscribe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("robot: %s running (odom every %v, sensors every %v)", r.Name, cfg.OdomPeriod(), cfg.SensorPeriod())
	return r.Run(ctx)
}
