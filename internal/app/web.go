package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/swarm_controller/internal/config"
	"github.com/relabs-tech/swarm_controller/internal/motion"
	"github.com/relabs-tech/swarm_controller/internal/odometry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from the robot LAN
	},
}

// WSCommand is what a browser sends over the websocket.
type WSCommand struct {
	Action string          `json:"action"` // move_to, cmd_vel, stop
	Robot  string          `json:"robot"`
	X      float64         `json:"x,omitempty"`
	Y      float64         `json:"y,omitempty"`
	Twist  *odometry.Twist `json:"twist,omitempty"`
}

// WSResponse is sent back for commands and carries odometry updates.
type WSResponse struct {
	Type     string            `json:"type"` // odom, ack, error
	Odometry *odometry.Message `json:"odometry,omitempty"`
	Message  string            `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Bridge relays odometry from MQTT to browsers and commands from browsers
// to MQTT.
type Bridge struct {
	cfg  *config.Config
	msgr Messenger

	mu      sync.RWMutex
	latest  map[string]odometry.Message
	clients map[*wsClient]bool
}

func NewBridge(cfg *config.Config, m Messenger) *Bridge {
	return &Bridge{
		cfg:     cfg,
		msgr:    m,
		latest:  make(map[string]odometry.Message),
		clients: make(map[*wsClient]bool),
	}
}

// Subscribe listens to every robot's odometry topic.
func (b *Bridge) Subscribe() error {
	for _, name := range b.cfg.Robots {
		robot := name
		err := b.msgr.Subscribe(b.cfg.RobotTopic(robot, "odom"), func(_ string, payload []byte) {
			if err := b.HandleOdometry(robot, payload); err != nil {
				log.Printf("web: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// HandleOdometry records the latest message for robot and pushes it to every
// connected browser. Slow browsers miss updates rather than stall the rest.
func (b *Bridge) HandleOdometry(robot string, payload []byte) error {
	var msg odometry.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("odometry for %s: %w", robot, err)
	}
	msg.Robot = robot

	frame, err := json.Marshal(WSResponse{Type: "odom", Odometry: &msg})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.latest[robot] = msg
	for c := range b.clients {
		select {
		case c.send <- frame:
		default:
		}
	}
	b.mu.Unlock()
	return nil
}

// Latest returns a copy of the last odometry per robot.
func (b *Bridge) Latest() map[string]odometry.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]odometry.Message, len(b.latest))
	for k, v := range b.latest {
		out[k] = v
	}
	return out
}

func (b *Bridge) knows(robot string) bool {
	for _, r := range b.cfg.Robots {
		if r == robot {
			return true
		}
	}
	return false
}

// Execute publishes a browser command to the matching MQTT topic.
func (b *Bridge) Execute(cmd WSCommand) error {
	if !b.knows(cmd.Robot) {
		return fmt.Errorf("unknown robot %q", cmd.Robot)
	}
	switch cmd.Action {
	case "move_to":
		payload, err := json.Marshal(MoveTo{Robot: cmd.Robot, X: cmd.X, Y: cmd.Y})
		if err != nil {
			return err
		}
		return b.msgr.Publish(b.cfg.TopicMoveTo, payload)
	case "cmd_vel", "stop":
		tw := odometry.TwistMessage(motion.Twist2D{})
		if cmd.Action == "cmd_vel" {
			if cmd.Twist == nil {
				return fmt.Errorf("cmd_vel without twist")
			}
			tw = *cmd.Twist
		}
		payload, err := json.Marshal(tw)
		if err != nil {
			return err
		}
		return b.msgr.Publish(b.cfg.RobotTopic(cmd.Robot, "cmd_vel"), payload)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

// ServeWS upgrades the connection and serves one browser until it leaves.
func (b *Bridge) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, 32)}

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}()

	for {
		var cmd WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket read error: %v", err)
			}
			break
		}
		resp := WSResponse{Type: "ack", Message: cmd.Action}
		if err := b.Execute(cmd); err != nil {
			resp = WSResponse{Type: "error", Message: err.Error()}
		}
		if frame, err := json.Marshal(resp); err == nil {
			b.mu.RLock()
			select {
			case c.send <- frame:
			default:
			}
			b.mu.RUnlock()
		}
	}

	b.mu.Lock()
	delete(b.clients, c)
	close(c.send)
	b.mu.Unlock()
	<-done
	conn.Close()
}

// Handler serves the websocket, the JSON snapshot and the static dashboard.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.ServeWS)
	mux.HandleFunc("/api/odometry", func(w http.ResponseWriter, r *http.Request) {
		latest := b.Latest()
		if len(latest) == 0 {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(latest); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb serves the dashboard on WEB_SERVER_PORT.
func RunWeb() error {
	cfg := config.Get()

	msgr, disconnect, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer disconnect()

	b := NewBridge(cfg, msgr)
	if err := b.Subscribe(); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, b.Handler())
}
