package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Euler is a roll/pitch/yaw triple in radians (ZYX convention).
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Quaternion uses the geometry_msgs field layout so it can be marshalled
// straight into odometry messages.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// FromQuaternion extracts roll, pitch and yaw. The quaternion is normalized
// first; an all-zero quaternion yields zero angles.
func FromQuaternion(q Quaternion) Euler {
	n := q.number()
	if abs := quat.Abs(n); abs > 0 {
		n = quat.Scale(1/abs, n)
	}
	x, y, z, w := n.Imag, n.Jmag, n.Kmag, n.Real

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	// rounding can push |sinp| slightly above 1 at gimbal lock
	sinp = math.Max(-1, math.Min(1, sinp))
	pitch := math.Asin(sinp)

	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Euler{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// Heading returns the rotation about the vertical axis. The motor-controller
// firmware reports heading as yaw, so this is the angle the waypoint
// controller steers with.
func Heading(q Quaternion) float64 {
	return FromQuaternion(q).Yaw
}

// FromYaw builds a pure z-axis rotation.
func FromYaw(yaw float64) Quaternion {
	s, c := math.Sincos(yaw / 2)
	return Quaternion{Z: s, W: c}
}

// Degrees converts radians to degrees for log output.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
