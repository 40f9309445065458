package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/swarm_controller/internal/config"
	"github.com/relabs-tech/swarm_controller/internal/control"
	"github.com/relabs-tech/swarm_controller/internal/motion"
	"github.com/relabs-tech/swarm_controller/internal/odometry"
)

// MoveTo asks one robot to drive to a point.
type MoveTo struct {
	Robot string  `json:"robot"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type odomUpdate struct {
	robot string
	pose  motion.Pose2D
}

// Navigator steers every robot in the roster toward its current waypoint.
// MQTT handlers decode and forward; the registry is touched only from Run.
type Navigator struct {
	Registry *control.Registry

	cfg   *config.Config
	msgr  Messenger
	odom  chan odomUpdate
	moves chan MoveTo
}

// NewNavigator builds the registry from cfg.Robots. Commands for each robot
// go out on its cmd_vel topic.
func NewNavigator(cfg *config.Config, m Messenger) (*Navigator, error) {
	ctrl := control.Controller{
		MaxLinear:        cfg.VMax,
		MaxAngular:       cfg.OmegaMax,
		ArrivalThreshold: cfg.ArrivalThreshold,
	}
	n := &Navigator{
		Registry: control.NewRegistry(ctrl),
		cfg:      cfg,
		msgr:     m,
		odom:     make(chan odomUpdate, 64),
		moves:    make(chan MoveTo, 16),
	}
	for _, name := range cfg.Robots {
		topic := cfg.RobotTopic(name, "cmd_vel")
		pub := control.PublisherFunc(func(cmd motion.Twist2D) error {
			payload, err := json.Marshal(odometry.TwistMessage(cmd))
			if err != nil {
				return err
			}
			return m.Publish(topic, payload)
		})
		if err := n.Registry.Add(name, pub); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Subscribe listens to every robot's odometry and to move-to requests.
func (n *Navigator) Subscribe() error {
	for _, name := range n.Registry.Names() {
		robot := name
		err := n.msgr.Subscribe(n.cfg.RobotTopic(robot, "odom"), func(_ string, payload []byte) {
			if err := n.HandleOdometry(robot, payload); err != nil {
				log.Printf("navigator: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}
	return n.msgr.Subscribe(n.cfg.TopicMoveTo, func(_ string, payload []byte) {
		if err := n.HandleMoveTo(payload); err != nil {
			log.Printf("navigator: %v", err)
		}
	})
}

// HandleOdometry decodes a telemetry message received on robot's odom topic.
// The topic decides which robot it belongs to. It never blocks: with the
// queue full (or Run gone) the update is dropped and reported.
func (n *Navigator) HandleOdometry(robot string, payload []byte) error {
	var msg odometry.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("odometry for %s: %w", robot, err)
	}
	if msg.Robot != "" && msg.Robot != robot {
		log.Printf("navigator: odometry on %s's topic claims robot %q", robot, msg.Robot)
	}
	select {
	case n.odom <- odomUpdate{robot: robot, pose: msg.Pose2D()}:
	default:
		return fmt.Errorf("odometry for %s: queue full, dropping update", robot)
	}
	return nil
}

// HandleMoveTo decodes and queues a waypoint request. The robot field is
// required; unknown robots are rejected when the request is applied.
func (n *Navigator) HandleMoveTo(payload []byte) error {
	var req MoveTo
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("move_to: %w", err)
	}
	if req.Robot == "" {
		return fmt.Errorf("move_to: missing robot field")
	}
	select {
	case n.moves <- req:
	default:
		return fmt.Errorf("move_to for %s: queue full, dropping request", req.Robot)
	}
	return nil
}

func (n *Navigator) applyOdometry(u odomUpdate) {
	if err := n.Registry.UpdatePose(u.robot, u.pose); err != nil {
		log.Printf("navigator: %v", err)
	}
}

func (n *Navigator) applyMoveTo(req MoveTo) {
	if err := n.Registry.SetTarget(req.Robot, motion.Point{X: req.X, Y: req.Y}); err != nil {
		log.Printf("navigator: move_to: %v", err)
		return
	}
	log.Printf("navigator: %s heading to (%.3f, %.3f)", req.Robot, req.X, req.Y)
}

func (n *Navigator) tick() []control.TickResult {
	results := n.Registry.Tick()
	for _, res := range results {
		switch {
		case res.Err == nil:
		case errors.Is(res.Err, control.ErrNoPose):
			log.Printf("navigator: %s waiting for odometry", res.Robot)
		default:
			log.Printf("navigator: %v", res.Err)
		}
	}
	return results
}

// Run applies updates in arrival order and ticks the registry every
// CONTROL_INTERVAL until ctx is done.
func (n *Navigator) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.ControlPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-n.odom:
			n.applyOdometry(u)
		case req := <-n.moves:
			n.applyMoveTo(req)
		case <-ticker.C:
			n.tick()
		}
	}
}

// RunPositionController runs the supervisory process until SIGINT/SIGTERM.
func RunPositionController() error {
	cfg := config.Get()

	msgr, disconnect, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDNavigator)
	if err != nil {
		return err
	}
	defer disconnect()

	n, err := NewNavigator(cfg, msgr)
	if err != nil {
		return err
	}
	if err := n.Subscribe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("navigator: steering %v every %v", n.Registry.Names(), cfg.ControlPeriod())
	return n.Run(ctx)
}
