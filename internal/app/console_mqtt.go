package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/swarm_controller/internal/config"
	"github.com/relabs-tech/swarm_controller/internal/odometry"
	"github.com/relabs-tech/swarm_controller/internal/orientation"
)

func formatOdometry(m odometry.Message) string {
	yaw := orientation.Degrees(orientation.Heading(m.Pose.Orientation))
	return fmt.Sprintf(
		"[ODOM %-8s] x=%7.3f y=%7.3f yaw=%7.2f°  vx=%6.3f vy=%6.3f wz=%6.3f",
		m.Robot, m.Pose.Position.X, m.Pose.Position.Y, yaw,
		m.Twist.Linear.X, m.Twist.Linear.Y, m.Twist.Angular.Z,
	)
}

func formatCmdVel(robot string, t odometry.Twist) string {
	return fmt.Sprintf(
		"[CMD  %-8s] X Linear=%6.3f Y Linear=%6.3f Z Angular=%6.3f",
		robot, t.Linear.X, t.Linear.Y, t.Angular.Z,
	)
}

func formatMoveTo(m MoveTo) string {
	return fmt.Sprintf("[GOAL %-8s] x=%7.3f y=%7.3f", m.Robot, m.X, m.Y)
}

// subscribeConsole prints every robot's odometry and commands, plus
// move-to requests, through printf.
func subscribeConsole(cfg *config.Config, m Messenger, printf func(format string, a ...any)) error {
	for _, name := range cfg.Robots {
		robot := name
		if err := m.Subscribe(cfg.RobotTopic(robot, "odom"), func(_ string, payload []byte) {
			var msg odometry.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Printf("console: %s odom unmarshal error: %v", robot, err)
				return
			}
			msg.Robot = robot
			printf("%s\n", formatOdometry(msg))
		}); err != nil {
			return err
		}

		if err := m.Subscribe(cfg.RobotTopic(robot, "cmd_vel"), func(_ string, payload []byte) {
			var tw odometry.Twist
			if err := json.Unmarshal(payload, &tw); err != nil {
				log.Printf("console: %s cmd_vel unmarshal error: %v", robot, err)
				return
			}
			printf("%s\n", formatCmdVel(robot, tw))
		}); err != nil {
			return err
		}
	}

	return m.Subscribe(cfg.TopicMoveTo, func(_ string, payload []byte) {
		var req MoveTo
		if err := json.Unmarshal(payload, &req); err != nil {
			log.Printf("console: move_to unmarshal error: %v", err)
			return
		}
		printf("%s\n", formatMoveTo(req))
	})
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	msgr, disconnect, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	if err := subscribeConsole(cfg, msgr, func(format string, a ...any) { fmt.Printf(format, a...) }); err != nil {
		disconnect()
		return err
	}
	log.Printf("console: watching %v", cfg.Robots)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	disconnect()
	return nil
}
