// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion holds the planar pose and velocity types shared by the
// odometry, control and actuator packages.
package motion

import "math"

// Pose2D is a planar robot pose. Heading is in radians, wrapped to (-π, π].
type Pose2D struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Twist2D is a planar velocity command or estimate.
type Twist2D struct {
	LinearX  float64 `json:"linear_x"`
	LinearY  float64 `json:"linear_y"`
	AngularZ float64 `json:"angular_z"`
}

// Point is a waypoint target in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsZero reports whether every component is zero.
func (t Twist2D) IsZero() bool {
	return t.LinearX == 0 && t.LinearY == 0 && t.AngularZ == 0
}

// WrapAngle maps any angle to (-π, π].
func WrapAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return a
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
