package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/swarm_controller/internal/odometry"
)

func dialBridge(t *testing.T, b *Bridge) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn, srv
}

func readResponse(t *testing.T, conn *websocket.Conn) WSResponse {
	t.Helper()
	var resp WSResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestBridgeMoveToFromBrowser(t *testing.T) {
	fm := newFakeMessenger()
	b := NewBridge(testConfig("r1", "r2"), fm)
	conn, _ := dialBridge(t, b)

	require.NoError(t, conn.WriteJSON(WSCommand{Action: "move_to", Robot: "r2", X: 1.5, Y: -2}))
	resp := readResponse(t, conn)
	assert.Equal(t, "ack", resp.Type)

	pubs := fm.sent()
	require.Len(t, pubs, 1)
	assert.Equal(t, "swarm/move_to", pubs[0].topic)
	var req MoveTo
	require.NoError(t, json.Unmarshal(pubs[0].payload, &req))
	assert.Equal(t, MoveTo{Robot: "r2", X: 1.5, Y: -2}, req)
}

func TestBridgeTeleopAndStop(t *testing.T) {
	fm := newFakeMessenger()
	b := NewBridge(testConfig("r1"), fm)
	conn, _ := dialBridge(t, b)

	tw := odometry.Twist{Linear: odometry.Vector3{X: 0.2}, Angular: odometry.Vector3{Z: 0.1}}
	require.NoError(t, conn.WriteJSON(WSCommand{Action: "cmd_vel", Robot: "r1", Twist: &tw}))
	assert.Equal(t, "ack", readResponse(t, conn).Type)
	require.NoError(t, conn.WriteJSON(WSCommand{Action: "stop", Robot: "r1"}))
	assert.Equal(t, "ack", readResponse(t, conn).Type)

	pubs := fm.sent()
	require.Len(t, pubs, 2)
	var got odometry.Twist
	require.NoError(t, json.Unmarshal(pubs[0].payload, &got))
	assert.Equal(t, tw, got)
	require.NoError(t, json.Unmarshal(pubs[1].payload, &got))
	assert.Equal(t, odometry.Twist{}, got)
	assert.Equal(t, "swarm/r1/cmd_vel", pubs[1].topic)
}

func TestBridgeRejectsBadCommands(t *testing.T) {
	fm := newFakeMessenger()
	b := NewBridge(testConfig("r1"), fm)
	conn, _ := dialBridge(t, b)

	for _, cmd := range []WSCommand{
		{Action: "move_to", Robot: "ghost"},
		{Action: "dance", Robot: "r1"},
		{Action: "cmd_vel", Robot: "r1"},
	} {
		require.NoError(t, conn.WriteJSON(cmd))
		assert.Equal(t, "error", readResponse(t, conn).Type)
	}
	assert.Empty(t, fm.sent())
}

func TestBridgeBroadcastsOdometry(t *testing.T) {
	fm := newFakeMessenger()
	b := NewBridge(testConfig("r1"), fm)
	require.NoError(t, b.Subscribe())
	conn, srv := dialBridge(t, b)

	resp, err := http.Get(srv.URL + "/api/odometry")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// an ack proves the client is registered before the broadcast
	require.NoError(t, conn.WriteJSON(WSCommand{Action: "stop", Robot: "r1"}))
	require.Equal(t, "ack", readResponse(t, conn).Type)

	fm.deliver(t, "swarm/r1/odom", odomPayload(t, "r1", 1, 2, 0))
	frame := readResponse(t, conn)
	require.Equal(t, "odom", frame.Type)
	require.NotNil(t, frame.Odometry)
	assert.Equal(t, "r1", frame.Odometry.Robot)
	assert.InDelta(t, 2.0, frame.Odometry.Pose.Position.Y, 1e-6)

	resp, err = http.Get(srv.URL + "/api/odometry")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest map[string]odometry.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Contains(t, latest, "r1")
}
