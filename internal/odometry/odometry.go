// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package odometry maps the firmware's telemetry block onto pose and twist.
// The firmware already runs its own estimator; nothing here filters or
// smooths its output.
package odometry

import (
	"math"
	"time"

	"github.com/relabs-tech/swarm_controller/internal/motion"
	"github.com/relabs-tech/swarm_controller/internal/orientation"
	"github.com/relabs-tech/swarm_controller/internal/wire"
)

// PoseFromBlock reads position and heading (yaw) straight from the block.
func PoseFromBlock(b wire.OdometryBlock) motion.Pose2D {
	return motion.Pose2D{
		X:       float64(b[wire.FieldPosX]),
		Y:       float64(b[wire.FieldPosY]),
		Heading: motion.WrapAngle(float64(b[wire.FieldHeading])),
	}
}

// TwistFromBlock splits the scalar forward speed along the heading. The
// firmware reports speed plus heading, not independent x/y velocities.
func TwistFromBlock(b wire.OdometryBlock) motion.Twist2D {
	heading := float64(b[wire.FieldHeading])
	speed := float64(b[wire.FieldSpeed])
	sin, cos := math.Sincos(heading)
	return motion.Twist2D{
		LinearX:  speed * cos,
		LinearY:  speed * sin,
		AngularZ: float64(b[wire.FieldAngularZ]),
	}
}

// Vector3 mirrors geometry_msgs/Vector3 (and Point).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is position plus orientation.
type Pose struct {
	Position    Vector3                `json:"position"`
	Orientation orientation.Quaternion `json:"orientation"`
}

// Twist is linear plus angular velocity.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// Message is the odometry snapshot published for each robot.
type Message struct {
	Robot string `json:"robot"`
	Time  string `json:"time"`
	Pose  Pose   `json:"pose"`
	Twist Twist  `json:"twist"`
}

// NewMessage converts one telemetry block. Orientation is a pure yaw
// rotation built from the heading field.
func NewMessage(robot string, t time.Time, b wire.OdometryBlock) Message {
	pose := PoseFromBlock(b)
	tw := TwistFromBlock(b)
	return Message{
		Robot: robot,
		Time:  t.UTC().Format(time.RFC3339Nano),
		Pose: Pose{
			Position:    Vector3{X: pose.X, Y: pose.Y},
			Orientation: orientation.FromYaw(pose.Heading),
		},
		Twist: Twist{
			Linear:  Vector3{X: tw.LinearX, Y: tw.LinearY},
			Angular: Vector3{Z: tw.AngularZ},
		},
	}
}

// Pose2D recovers the planar pose, taking heading as the yaw of the
// orientation quaternion.
func (m Message) Pose2D() motion.Pose2D {
	return motion.Pose2D{
		X:       m.Pose.Position.X,
		Y:       m.Pose.Position.Y,
		Heading: orientation.Heading(m.Pose.Orientation),
	}
}

// Twist2D returns the planar part of the twist.
func (m Message) Twist2D() motion.Twist2D {
	return motion.Twist2D{
		LinearX:  m.Twist.Linear.X,
		LinearY:  m.Twist.Linear.Y,
		AngularZ: m.Twist.Angular.Z,
	}
}

// TwistMessage builds the geometry_msgs/Twist shaped payload for a command.
func TwistMessage(t motion.Twist2D) Twist {
	return Twist{
		Linear:  Vector3{X: t.LinearX, Y: t.LinearY},
		Angular: Vector3{Z: t.AngularZ},
	}
}
