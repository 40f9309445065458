package imu

import "github.com/relabs-tech/swarm_controller/internal/orientation"

// Vector3 is a 3-axis reading.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sample is one accelerometer + gyroscope reading.
type Sample struct {
	Source string `json:"source"`
	Time   string `json:"time"`

	// Orientation is not estimated on the robot; it is always identity.
	Orientation orientation.Quaternion `json:"orientation"`

	AngularVelocity    Vector3 `json:"angular_velocity"`    // rad/s
	LinearAcceleration Vector3 `json:"linear_acceleration"` // m/s²
}

// MagSample is one magnetometer reading in µT.
type MagSample struct {
	Source string  `json:"source"`
	Time   string  `json:"time"`
	Field  Vector3 `json:"field"`
}
