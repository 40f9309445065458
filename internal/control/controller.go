// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package control drives robots to single waypoints.
//
// Each robot is either idle (no target) or tracking a target. While
// tracking, every tick turns the latest pose into a velocity command; once
// the robot is within the arrival threshold a single zero command is sent
// and the robot goes back to idle.
package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/relabs-tech/swarm_controller/internal/motion"
)

const (
	DefaultMaxLinear        = 0.5  // m/s
	DefaultMaxAngular       = 0.5  // rad/s
	DefaultArrivalThreshold = 0.05 // m
)

// Controller holds the gains of the point-to-point law.
type Controller struct {
	MaxLinear        float64
	MaxAngular       float64
	ArrivalThreshold float64
}

// NewController returns a controller with the default gains.
func NewController() Controller {
	return Controller{
		MaxLinear:        DefaultMaxLinear,
		MaxAngular:       DefaultMaxAngular,
		ArrivalThreshold: DefaultArrivalThreshold,
	}
}

// Distance is the Euclidean distance from pose to target.
func Distance(pose motion.Pose2D, target motion.Point) float64 {
	return r2.Norm(r2.Sub(r2.Vec{X: target.X, Y: target.Y}, r2.Vec{X: pose.X, Y: pose.Y}))
}

// Compute returns the command that steers pose toward target, or a zero
// twist and arrived=true when the target is closer than ArrivalThreshold.
//
// The position error is rotated into the body frame. Forward speed is
// proportional to the forward error and saturates at MaxLinear. Turn rate is
// the bearing of (forward, lateral) error scaled so that a ±90° bearing maps
// to ±MaxAngular; it saturates at MaxAngular for targets behind the robot.
func (c Controller) Compute(pose motion.Pose2D, target motion.Point) (motion.Twist2D, bool) {
	if Distance(pose, target) < c.ArrivalThreshold {
		return motion.Twist2D{}, true
	}

	dx := target.X - pose.X
	dy := target.Y - pose.Y
	sin, cos := math.Sincos(pose.Heading)

	v := c.MaxLinear * (dx*cos + dy*sin)
	lateral := -sin*dx + cos*dy
	omega := c.MaxAngular * 2 * math.Atan2(lateral, v) / math.Pi

	return motion.Twist2D{
		LinearX:  clamp(v, c.MaxLinear),
		AngularZ: clamp(omega, c.MaxAngular),
	}, false
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
