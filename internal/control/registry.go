package control

import (
	"errors"
	"fmt"
	"log"

	"github.com/relabs-tech/swarm_controller/internal/motion"
)

// Precondition failures. They are rejected before any command is computed
// or sent; match them with errors.Is(err, ErrPrecondition).
var (
	ErrPrecondition = errors.New("precondition failed")
	ErrUnknownRobot = fmt.Errorf("%w: unknown robot", ErrPrecondition)
	ErrNoPose       = fmt.Errorf("%w: no pose known", ErrPrecondition)
	ErrNoTarget     = fmt.Errorf("%w: no target", ErrPrecondition)
)

// Publisher delivers a velocity command to one robot.
type Publisher interface {
	Publish(cmd motion.Twist2D) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(cmd motion.Twist2D) error

func (f PublisherFunc) Publish(cmd motion.Twist2D) error { return f(cmd) }

// Track is the control state of one robot.
type Track struct {
	Name      string
	pose      motion.Pose2D
	hasPose   bool
	target    motion.Point
	hasTarget bool
	publisher Publisher
}

// TrackState is a read-only copy of a Track.
type TrackState struct {
	Name      string        `json:"name"`
	Pose      motion.Pose2D `json:"pose"`
	HasPose   bool          `json:"has_pose"`
	Target    motion.Point  `json:"target"`
	HasTarget bool          `json:"has_target"`
}

// TickResult reports what one tick did for one tracking robot.
type TickResult struct {
	Robot   string
	Command motion.Twist2D
	Arrived bool
	Err     error
}

// Registry maps robot names to tracks. It is owned by a single control loop
// and is not safe for concurrent use.
type Registry struct {
	ctrl   Controller
	order  []string
	tracks map[string]*Track
}

// NewRegistry returns an empty registry using ctrl for every robot.
func NewRegistry(ctrl Controller) *Registry {
	return &Registry{ctrl: ctrl, tracks: make(map[string]*Track)}
}

// Add registers a robot. Names must be unique and non-empty.
func (r *Registry) Add(name string, pub Publisher) error {
	if name == "" {
		return errors.New("control: empty robot name")
	}
	if pub == nil {
		return fmt.Errorf("control: robot %q has no publisher", name)
	}
	if _, ok := r.tracks[name]; ok {
		return fmt.Errorf("control: duplicate robot %q", name)
	}
	r.tracks[name] = &Track{Name: name, publisher: pub}
	r.order = append(r.order, name)
	return nil
}

// Names lists robots in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Controller returns the gains in use.
func (r *Registry) Controller() Controller { return r.ctrl }

func (r *Registry) track(name string) (*Track, error) {
	t, ok := r.tracks[name]
	if !ok {
		return nil, fmt.Errorf("robot %q: %w", name, ErrUnknownRobot)
	}
	return t, nil
}

// UpdatePose applies an odometry update. Target state is not touched.
func (r *Registry) UpdatePose(name string, p motion.Pose2D) error {
	t, err := r.track(name)
	if err != nil {
		return err
	}
	t.pose = p
	t.hasPose = true
	return nil
}

// SetTarget starts (or retargets) tracking.
func (r *Registry) SetTarget(name string, p motion.Point) error {
	t, err := r.track(name)
	if err != nil {
		return err
	}
	t.target = p
	t.hasTarget = true
	return nil
}

// ClearTarget returns a robot to idle without sending anything.
func (r *Registry) ClearTarget(name string) error {
	t, err := r.track(name)
	if err != nil {
		return err
	}
	t.hasTarget = false
	t.target = motion.Point{}
	return nil
}

// Snapshot copies the state of one robot.
func (r *Registry) Snapshot(name string) (TrackState, error) {
	t, err := r.track(name)
	if err != nil {
		return TrackState{}, err
	}
	return TrackState{
		Name:      t.Name,
		Pose:      t.pose,
		HasPose:   t.hasPose,
		Target:    t.target,
		HasTarget: t.hasTarget,
	}, nil
}

// Command computes the next command for name without changing any state.
func (r *Registry) Command(name string) (motion.Twist2D, bool, error) {
	t, err := r.track(name)
	if err != nil {
		return motion.Twist2D{}, false, err
	}
	if !t.hasTarget {
		return motion.Twist2D{}, false, fmt.Errorf("robot %q: %w", name, ErrNoTarget)
	}
	if !t.hasPose {
		return motion.Twist2D{}, false, fmt.Errorf("robot %q: %w", name, ErrNoPose)
	}
	cmd, arrived := r.ctrl.Compute(t.pose, t.target)
	return cmd, arrived, nil
}

// Tick runs one control step for every tracking robot, in registration
// order. On arrival the zero command is published and the target dropped.
// If publishing fails the track is left as it was, so the next tick tries
// again; a failure on one robot never affects the others.
func (r *Registry) Tick() []TickResult {
	var results []TickResult
	for _, name := range r.order {
		t := r.tracks[name]
		if !t.hasTarget {
			continue
		}
		cmd, arrived, err := r.Command(name)
		res := TickResult{Robot: name, Command: cmd, Arrived: arrived, Err: err}
		if err != nil {
			results = append(results, res)
			continue
		}
		if err := t.publisher.Publish(cmd); err != nil {
			res.Err = fmt.Errorf("robot %q: publish: %w", name, err)
			res.Arrived = false
			results = append(results, res)
			continue
		}
		if arrived {
			log.Printf("control: %s arrived at (%.3f, %.3f)", name, t.target.X, t.target.Y)
			t.hasTarget = false
			t.target = motion.Point{}
		}
		results = append(results, res)
	}
	return results
}
