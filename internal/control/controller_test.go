package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/swarm_controller/internal/motion"
)

func TestArrivalThresholdIsStrict(t *testing.T) {
	c := NewController()
	target := motion.Point{}

	_, arrived := c.Compute(motion.Pose2D{X: 0.05}, target)
	assert.False(t, arrived, "exactly at the threshold is not arrived")

	cmd, arrived := c.Compute(motion.Pose2D{X: 0.0499}, target)
	assert.True(t, arrived)
	assert.True(t, cmd.IsZero())
}

func TestDistanceUsesBothAxes(t *testing.T) {
	// x error alone is tiny, y error is large: must not count as arrived
	c := NewController()
	_, arrived := c.Compute(motion.Pose2D{X: 1, Y: 0}, motion.Point{X: 1.01, Y: 2})
	assert.False(t, arrived)
	assert.InDelta(t, 5.0, Distance(motion.Pose2D{}, motion.Point{X: 3, Y: 4}), 1e-12)
}

func TestTargetAheadDrivesStraight(t *testing.T) {
	c := NewController()
	cmd, arrived := c.Compute(motion.Pose2D{}, motion.Point{X: 0.5})
	assert.False(t, arrived)
	assert.Greater(t, cmd.LinearX, 0.0)
	assert.InDelta(t, 0, cmd.AngularZ, 1e-12)
	assert.Zero(t, cmd.LinearY)
}

func TestTargetLeftTurnsLeft(t *testing.T) {
	c := NewController()
	cmd, _ := c.Compute(motion.Pose2D{}, motion.Point{Y: 0.5})
	assert.InDelta(t, 0, cmd.LinearX, 1e-12)
	assert.Greater(t, cmd.AngularZ, 0.0)
	assert.InDelta(t, c.MaxAngular, cmd.AngularZ, 1e-12, "90° bearing maps to max turn rate")
}

func TestTargetRightTurnsRight(t *testing.T) {
	c := NewController()
	cmd, _ := c.Compute(motion.Pose2D{}, motion.Point{X: 0.2, Y: -0.2})
	assert.Greater(t, cmd.LinearX, 0.0)
	assert.Less(t, cmd.AngularZ, 0.0)
}

func TestHeadingRotatesError(t *testing.T) {
	c := NewController()
	// facing +y, target straight ahead along +y
	cmd, _ := c.Compute(motion.Pose2D{Heading: math.Pi / 2}, motion.Point{Y: 0.4})
	assert.InDelta(t, c.MaxLinear*0.4, cmd.LinearX, 1e-12)
	assert.InDelta(t, 0, cmd.AngularZ, 1e-12)
}

func TestCommandsSaturate(t *testing.T) {
	c := NewController()

	cmd, _ := c.Compute(motion.Pose2D{}, motion.Point{X: 10})
	assert.Equal(t, c.MaxLinear, cmd.LinearX)

	// behind: atan2(0, negative) is π, which would ask for twice the max rate
	cmd, _ = c.Compute(motion.Pose2D{}, motion.Point{X: -10})
	assert.Equal(t, -c.MaxLinear, cmd.LinearX)
	assert.LessOrEqual(t, math.Abs(cmd.AngularZ), c.MaxAngular)
}

func TestComputeIsProportionalBelowSaturation(t *testing.T) {
	c := Controller{MaxLinear: 1, MaxAngular: 1, ArrivalThreshold: 0.01}
	cmd, _ := c.Compute(motion.Pose2D{}, motion.Point{X: 0.3, Y: 0.3})
	assert.InDelta(t, 0.3, cmd.LinearX, 1e-12)
	// bearing is atan2(0.3, 0.3) = 45°, half of the max rate
	assert.InDelta(t, 0.5, cmd.AngularZ, 1e-12)
}
