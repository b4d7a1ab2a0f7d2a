// Package sim defines the simulation environment the harness drives. The engine itself (physics,
// scene representation, goal-predicate accounting) lives behind this interface.
package sim

import (
	"context"
	"image"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/makolon/og-vlm/spatialmath"
)

// DefaultMaxCatalog bounds the number of names shown to the planner.
const DefaultMaxCatalog = 64

// Action is one control tick of low-level actuation for the acting robot.
type Action []float64

// Object is an object in the current scene. AABB is nil when the engine cannot report one.
type Object struct {
	Name     string
	Position r3.Vector
	AABB     *spatialmath.AABB
}

// Environment is a single simulation instance. Every call blocks until the engine has finished
// it. An Environment has exactly one writer: callers must not invoke methods concurrently.
type Environment interface {
	// Reset starts a new episode, returning once the scene is ready.
	Reset(ctx context.Context) error
	// Step advances physics by one control tick applying action.
	Step(ctx context.Context, action Action) error
	// Objects returns the objects of the current scene in scene order.
	Objects(ctx context.Context) ([]Object, error)
	// AgentPosition returns the acting robot's base position.
	AgentPosition(ctx context.Context) (r3.Vector, error)
	// SetPosition kinematically moves the named object, leaving its orientation unchanged.
	SetPosition(ctx context.Context, name string, pos r3.Vector) error
	// GoalFraction returns the fraction of the activity's goal predicates currently satisfied.
	// ok is false when the engine cannot compute it.
	GoalFraction(ctx context.Context) (frac float64, ok bool, err error)
	// Snapshot captures the current view of the acting robot. ok is false when capture is
	// unsupported.
	Snapshot(ctx context.Context) (img image.Image, ok bool, err error)
	// Close releases the environment.
	Close(ctx context.Context) error
}

// Catalog returns the distinct names of objects, in scene order, truncated to max entries. A
// non-positive max means DefaultMaxCatalog.
func Catalog(objects []Object, max int) []string {
	if max <= 0 {
		max = DefaultMaxCatalog
	}
	names := lo.Uniq(lo.FilterMap(objects, func(o Object, _ int) (string, bool) {
		return o.Name, o.Name != ""
	}))
	if len(names) > max {
		names = names[:max]
	}
	return names
}

// FindObject returns the object with exactly the given name.
func FindObject(objects []Object, name string) (Object, bool) {
	return lo.Find(objects, func(o Object) bool {
		return o.Name == name
	})
}
