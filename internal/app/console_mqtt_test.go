package app

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/swarm_controller/internal/odometry"
	"github.com/relabs-tech/swarm_controller/internal/wire"
)

func TestConsolePrintsRobotTraffic(t *testing.T) {
	fm := newFakeMessenger()
	var out strings.Builder
	printf := func(format string, a ...any) { fmt.Fprintf(&out, format, a...) }
	require.NoError(t, subscribeConsole(testConfig("r1"), fm, printf))

	fm.deliver(t, "swarm/r1/odom", odomPayload(t, "r1", 1.5, -0.25, 0))
	fm.deliver(t, "swarm/r1/cmd_vel", []byte(`{"linear":{"x":0.3,"y":0,"z":0},"angular":{"x":0,"y":0,"z":-0.1}}`))
	fm.deliver(t, "swarm/move_to", []byte(`{"robot":"r1","x":2,"y":3}`))
	fm.deliver(t, "swarm/r1/odom", []byte(`garbage`))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "x=  1.500 y= -0.250")
	assert.Contains(t, lines[1], "X Linear= 0.300")
	assert.Contains(t, lines[1], "Z Angular=-0.100")
	assert.Contains(t, lines[2], "[GOAL r1      ]")
}

func TestFormatOdometryYawDegrees(t *testing.T) {
	msg := odometry.NewMessage("r2", time.Now(), wire.OdometryBlock{0, 0, 1.5707964, 0, 0})
	assert.Contains(t, formatOdometry(msg), "yaw=  90.00°")
}
