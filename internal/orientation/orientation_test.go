package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromYawRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, -1.2, math.Pi / 2, -3.0, 3.1} {
		q := FromYaw(yaw)
		assert.Zero(t, q.X)
		assert.Zero(t, q.Y)
		assert.InDelta(t, yaw, Heading(q), 1e-12, "yaw %v", yaw)
	}
}

func TestFromQuaternionRollOnly(t *testing.T) {
	s, c := math.Sincos(0.4 / 2)
	e := FromQuaternion(Quaternion{X: s, W: c})
	assert.InDelta(t, 0.4, e.Roll, 1e-12)
	assert.InDelta(t, 0, e.Pitch, 1e-12)
	assert.InDelta(t, 0, e.Yaw, 1e-12)
}

func TestFromQuaternionNormalizes(t *testing.T) {
	q := FromYaw(1.0)
	q.Z *= 3
	q.W *= 3
	assert.InDelta(t, 1.0, Heading(q), 1e-12)
}

func TestFromQuaternionZero(t *testing.T) {
	e := FromQuaternion(Quaternion{})
	assert.Equal(t, Euler{}, e)
}

func TestFromQuaternionGimbalLock(t *testing.T) {
	s, c := math.Sincos(math.Pi / 4)
	e := FromQuaternion(Quaternion{Y: s, W: c})
	assert.InDelta(t, math.Pi/2, e.Pitch, 1e-6)
	assert.False(t, math.IsNaN(e.Pitch))
}
