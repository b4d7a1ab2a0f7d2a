// Package fake implements a kinematic stand-in for the simulation engine. Objects are axis-aligned
// boxes, goal predicates are evaluated geometrically, and primitive actions take effect on the
// last control tick of their sequence.
package fake

import (
	"context"
	"image"
	"math/rand"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/sim"
	"github.com/makolon/og-vlm/spatialmath"
)

// BackendName is the name the fake backend is registered under.
const BackendName = "fake"

// Robots whose fake embodiment has a manipulator, and so supports primitive actions.
var manipulators = map[string]bool{"r1pro": true, "fetch": true, "tiago": true}

func init() {
	sim.RegisterBackend(BackendName, func(
		ctx context.Context, settings sim.Settings, logger logging.Logger,
	) (sim.Environment, error) {
		scene, err := LookupScene(settings.Activity)
		if err != nil {
			return nil, err
		}
		opts := []Option{WithSeed(settings.Seed), WithSnapshot(DefaultSnapshotWidth, DefaultSnapshotHeight)}
		if manipulators[settings.Robot] {
			opts = append(opts, WithPrimitives())
		}
		logger.Debugw("fake environment created", "activity", settings.Activity, "robot", settings.Robot)
		return NewEnvironment(scene, logger, opts...), nil
	})
}

func boxOf(b *Body) *spatialmath.AABB {
	if b.Size == (r3.Vector{}) {
		return nil
	}
	box, err := spatialmath.AABBFromCenter(b.Position, b.Size)
	if err != nil {
		return nil
	}
	return &box
}

// Environment is a fake sim.Environment.
type Environment struct {
	mu     sync.Mutex
	scene  Scene
	logger logging.Logger

	seed       int64
	rng        *rand.Rand
	primitives bool
	snapshotW  int
	snapshotH  int

	bodies  []*Body
	agent   r3.Vector
	held    string
	ticks   int
	pending map[int]func()
	nextID  int
	closed  bool
}

// Option configures an Environment.
type Option func(*Environment)

// WithSeed makes robot and object placement on Reset reproducible.
func WithSeed(seed int64) Option {
	return func(e *Environment) {
		e.seed = seed
	}
}

// WithPrimitives enables primitive action synthesis.
func WithPrimitives() Option {
	return func(e *Environment) {
		e.primitives = true
	}
}

// WithSnapshot enables top-down snapshots of the given size.
func WithSnapshot(width, height int) Option {
	return func(e *Environment) {
		e.snapshotW, e.snapshotH = width, height
	}
}

// NewEnvironment returns a fake environment for scene, already reset.
func NewEnvironment(scene Scene, logger logging.Logger, opts ...Option) *Environment {
	e := &Environment{scene: scene, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	e.rng = rand.New(rand.NewSource(e.seed)) //nolint:gosec
	e.reset()
	return e
}

func (e *Environment) reset() {
	e.agent = e.scene.Agent.Add(r3.Vector{X: e.rng.Float64() - 0.5, Y: e.rng.Float64() - 0.5})
	movable := e.scene.Movable()
	e.bodies = make([]*Body, 0, len(e.scene.Bodies))
	for _, b := range e.scene.Bodies {
		if movable[b.Name] {
			b.Position = b.Position.Add(r3.Vector{X: e.jitter(), Y: e.jitter()})
		}
		e.bodies = append(e.bodies, &b)
	}
	e.held = ""
	e.ticks = 0
	e.pending = map[int]func(){}
}

// jitter returns an offset in [-PlacementJitter, PlacementJitter).
func (e *Environment) jitter() float64 {
	return (2*e.rng.Float64() - 1) * PlacementJitter
}

func (e *Environment) find(name string) *Body {
	for _, b := range e.bodies {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func (e *Environment) checkOpen() error {
	if e.closed {
		return errors.New("environment closed")
	}
	return nil
}

// Reset restores the initial scene, then re-places the robot and shifts every object a goal
// moves by up to PlacementJitter in the horizontal plane.
func (e *Environment) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.reset()
	return nil
}

// Step advances one control tick. Actions produced by PrimitiveActions apply their effect on the
// last tick of their sequence; any other action only advances time.
func (e *Environment) Step(ctx context.Context, action sim.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.ticks++
	if len(action) != actionDims {
		return nil
	}
	id, index, total := int(action[0]), int(action[1]), int(action[2])
	if index != total-1 {
		return nil
	}
	effect, ok := e.pending[id]
	if !ok {
		return errors.Errorf("action sequence %d is stale", id)
	}
	delete(e.pending, id)
	effect()
	return nil
}

// Objects returns the scene objects in scene order.
func (e *Environment) Objects(ctx context.Context) ([]sim.Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]sim.Object, 0, len(e.bodies))
	for _, b := range e.bodies {
		out = append(out, sim.Object{Name: b.Name, Position: b.Position, AABB: boxOf(b)})
	}
	return out, nil
}

// AgentPosition returns the robot base position.
func (e *Environment) AgentPosition(ctx context.Context) (r3.Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return r3.Vector{}, err
	}
	return e.agent, nil
}

// SetPosition moves the named object's center to pos.
func (e *Environment) SetPosition(ctx context.Context, name string, pos r3.Vector) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	b := e.find(name)
	if b == nil {
		return errors.Errorf("no object named %q", name)
	}
	b.Position = pos
	if e.held == name {
		e.held = ""
	}
	return nil
}

// GoalFraction evaluates the goal predicates against the current state. It is not computable for
// a scene without goals.
func (e *Environment) GoalFraction(ctx context.Context) (float64, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return 0, false, err
	}
	if len(e.scene.Goals) == 0 {
		return 0, false, nil
	}
	satisfied := 0
	for _, g := range e.scene.Goals {
		if e.holds(g) {
			satisfied++
		}
	}
	return float64(satisfied) / float64(len(e.scene.Goals)), true, nil
}

// Snapshot renders a top-down view of the scene when snapshots are enabled.
func (e *Environment) Snapshot(ctx context.Context) (image.Image, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	if e.snapshotW <= 0 || e.snapshotH <= 0 {
		return nil, false, nil
	}
	return e.render(), true, nil
}

// Close marks the environment closed; every later call fails.
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Ticks returns the number of control ticks stepped since the last reset.
func (e *Environment) Ticks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// Held returns the name of the object in the gripper, if any.
func (e *Environment) Held() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held
}

// onTopSlack bounds how far above a receptacle's top an object's center may be and still count
// as on top of it.
const onTopSlack = 0.3

func (e *Environment) holds(g Goal) bool {
	obj := e.find(g.Object)
	if obj == nil {
		return false
	}
	switch g.Kind {
	case GoalOpen:
		return obj.Openable && obj.Open
	case GoalClosed:
		return obj.Openable && !obj.Open
	case GoalOnTop, GoalInside:
	default:
		return false
	}
	rec := e.find(g.Receptacle)
	if rec == nil {
		return false
	}
	box := boxOf(rec)
	if box == nil {
		return false
	}
	if g.Kind == GoalInside {
		return box.Contains(obj.Position)
	}
	return box.ContainsXY(obj.Position) &&
		obj.Position.Z >= box.Max.Z && obj.Position.Z <= box.Max.Z+onTopSlack
}
