package inject

import (
	"context"
	"image"

	"github.com/golang/geo/r3"

	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/sim"
)

// Environment is an injected simulation environment.
type Environment struct {
	sim.Environment
	ResetFunc         func(ctx context.Context) error
	StepFunc          func(ctx context.Context, action sim.Action) error
	ObjectsFunc       func(ctx context.Context) ([]sim.Object, error)
	AgentPositionFunc func(ctx context.Context) (r3.Vector, error)
	SetPositionFunc   func(ctx context.Context, name string, pos r3.Vector) error
	GoalFractionFunc  func(ctx context.Context) (float64, bool, error)
	SnapshotFunc      func(ctx context.Context) (image.Image, bool, error)
	CloseFunc         func(ctx context.Context) error
}

// Reset calls the injected Reset or the real version.
func (e *Environment) Reset(ctx context.Context) error {
	if e.ResetFunc == nil {
		return e.Environment.Reset(ctx)
	}
	return e.ResetFunc(ctx)
}

// Step calls the injected Step or the real version.
func (e *Environment) Step(ctx context.Context, action sim.Action) error {
	if e.StepFunc == nil {
		return e.Environment.Step(ctx, action)
	}
	return e.StepFunc(ctx, action)
}

// Objects calls the injected Objects or the real version.
func (e *Environment) Objects(ctx context.Context) ([]sim.Object, error) {
	if e.ObjectsFunc == nil {
		return e.Environment.Objects(ctx)
	}
	return e.ObjectsFunc(ctx)
}

// AgentPosition calls the injected AgentPosition or the real version.
func (e *Environment) AgentPosition(ctx context.Context) (r3.Vector, error) {
	if e.AgentPositionFunc == nil {
		return e.Environment.AgentPosition(ctx)
	}
	return e.AgentPositionFunc(ctx)
}

// SetPosition calls the injected SetPosition or the real version.
func (e *Environment) SetPosition(ctx context.Context, name string, pos r3.Vector) error {
	if e.SetPositionFunc == nil {
		return e.Environment.SetPosition(ctx, name, pos)
	}
	return e.SetPositionFunc(ctx, name, pos)
}

// GoalFraction calls the injected GoalFraction or the real version.
func (e *Environment) GoalFraction(ctx context.Context) (float64, bool, error) {
	if e.GoalFractionFunc == nil {
		return e.Environment.GoalFraction(ctx)
	}
	return e.GoalFractionFunc(ctx)
}

// Snapshot calls the injected Snapshot or the real version.
func (e *Environment) Snapshot(ctx context.Context) (image.Image, bool, error) {
	if e.SnapshotFunc == nil {
		return e.Environment.Snapshot(ctx)
	}
	return e.SnapshotFunc(ctx)
}

// Close calls the injected Close or the real version.
func (e *Environment) Close(ctx context.Context) error {
	if e.CloseFunc == nil {
		if e.Environment == nil {
			return nil
		}
		return e.Environment.Close(ctx)
	}
	return e.CloseFunc(ctx)
}

// PrimitiveEnvironment is an injected environment that also provides primitive actions.
type PrimitiveEnvironment struct {
	Environment
	PrimitiveActionsFunc func(ctx context.Context, op plan.Op, objects ...sim.Object) ([]sim.Action, error)
	ProbePrimitivesFunc  func(ctx context.Context) error
}

// PrimitiveActions calls the injected PrimitiveActions, or the embedded environment's when it
// provides primitives.
func (e *PrimitiveEnvironment) PrimitiveActions(ctx context.Context, op plan.Op, objects ...sim.Object) ([]sim.Action, error) {
	if e.PrimitiveActionsFunc == nil {
		if p, ok := e.Environment.Environment.(sim.PrimitiveProvider); ok {
			return p.PrimitiveActions(ctx, op, objects...)
		}
		return nil, sim.ErrPrimitivesUnsupported
	}
	return e.PrimitiveActionsFunc(ctx, op, objects...)
}

// ProbePrimitives calls the injected ProbePrimitives. Without one, primitives are reported
// available.
func (e *PrimitiveEnvironment) ProbePrimitives(ctx context.Context) error {
	if e.ProbePrimitivesFunc == nil {
		return nil
	}
	return e.ProbePrimitivesFunc(ctx)
}
