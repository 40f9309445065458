package bus

import (
	"errors"
	"math"
	"time"

	"github.com/relabs-tech/swarm_controller/internal/motion"
	"github.com/relabs-tech/swarm_controller/internal/wire"
)

// ErrNoAck is what the simulated peripheral reports for a wrong address or
// an injected fault.
var ErrNoAck = errors.New("no ack")

// Sim stands in for the motor-controller firmware. It accepts velocity
// blocks, integrates unicycle kinematics between reads and answers reads
// with an odometry block.
type Sim struct {
	Addr uint16
	// Step is the integration time per read. Zero uses wall-clock time
	// since the previous read.
	Step time.Duration

	// FailWrites and FailReads make the next n transactions fail.
	FailWrites int
	FailReads  int

	x, y, heading float64
	cmd           motion.Twist2D
	last          time.Time
	writes        int
}

// NewSim returns a simulated peripheral at addr, at rest at the origin.
func NewSim(addr uint16, step time.Duration) *Sim {
	return &Sim{Addr: addr, Step: step}
}

func (s *Sim) WriteBlock(addr uint16, first byte, body []byte) error {
	if err := checkBody(body); err != nil {
		return err
	}
	if addr != s.Addr {
		return &BusError{Op: "write", Addr: addr, Err: ErrNoAck}
	}
	if s.FailWrites > 0 {
		s.FailWrites--
		return &BusError{Op: "write", Addr: addr, Err: ErrNoAck}
	}
	raw := append([]byte{first}, body...)
	cmd, err := wire.DecodeVelocity(raw)
	if err != nil {
		// firmware ignores frames it cannot parse
		return nil
	}
	s.cmd = cmd
	s.writes++
	return nil
}

func (s *Sim) ReadBlock(addr uint16, n int) ([]byte, error) {
	if err := checkLength(n, 255); err != nil {
		return nil, err
	}
	if addr != s.Addr {
		return nil, &BusError{Op: "read", Addr: addr, Err: ErrNoAck}
	}
	if s.FailReads > 0 {
		s.FailReads--
		return nil, &BusError{Op: "read", Addr: addr, Err: ErrNoAck}
	}
	s.Advance(s.elapsed())
	b := wire.EncodeOdometry(s.Block())
	if n < len(b) {
		b = b[:n]
	} else if n > len(b) {
		b = append(b, make([]byte, n-len(b))...)
	}
	return b, nil
}

func (s *Sim) elapsed() time.Duration {
	if s.Step > 0 {
		return s.Step
	}
	now := time.Now()
	if s.last.IsZero() {
		s.last = now
		return 0
	}
	dt := now.Sub(s.last)
	s.last = now
	return dt
}

// Advance integrates the last commanded velocity for dt. linear_y is
// ignored: the drive train is differential.
func (s *Sim) Advance(dt time.Duration) {
	sec := dt.Seconds()
	s.heading = motion.WrapAngle(s.heading + s.cmd.AngularZ*sec)
	sin, cos := math.Sincos(s.heading)
	s.x += s.cmd.LinearX * cos * sec
	s.y += s.cmd.LinearX * sin * sec
}

// Block is the telemetry the firmware would report right now.
func (s *Sim) Block() wire.OdometryBlock {
	return wire.OdometryBlock{
		float32(s.x),
		float32(s.y),
		float32(s.heading),
		float32(s.cmd.LinearX),
		float32(s.cmd.AngularZ),
	}
}

// Place teleports the simulated robot.
func (s *Sim) Place(p motion.Pose2D) {
	s.x, s.y, s.heading = p.X, p.Y, motion.WrapAngle(p.Heading)
}

// Command is the last velocity the firmware accepted.
func (s *Sim) Command() motion.Twist2D { return s.cmd }

// Writes counts accepted velocity blocks.
func (s *Sim) Writes() int { return s.writes }
