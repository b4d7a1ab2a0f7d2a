// Package teleport implements an approximate execution strategy: navigation and manipulation are
// treated as having happened, and placements set the object's final pose directly.
package teleport

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/executor"
	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/resolve"
	"github.com/makolon/og-vlm/sim"
)

// Clearance is the height above a receptacle's top surface at which placed objects are dropped.
const Clearance = 0.05

// FallbackPosition is used for placements when the receptacle has no bounding box.
var FallbackPosition = r3.Vector{X: 0, Y: 0, Z: 1}

func init() {
	executor.Register(executor.KindTeleport, func(
		ctx context.Context, env sim.Environment, logger logging.Logger,
	) executor.Availability {
		return executor.Ready(New(env, logger))
	})
}

// Executor is the teleport execution strategy.
type Executor struct {
	env      sim.Environment
	resolver resolve.Strategy
	logger   logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithResolver overrides the name resolution strategy. The default picks the first match in
// catalog order.
func WithResolver(s resolve.Strategy) Option {
	return func(e *Executor) {
		e.resolver = s
	}
}

// New returns a teleport executor driving env.
func New(env sim.Environment, logger logging.Logger, opts ...Option) *Executor {
	e := &Executor{env: env, resolver: resolve.FirstMatch{}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NavigateTo always succeeds without touching the simulation.
func (e *Executor) NavigateTo(ctx context.Context, target string) (executor.Result, error) {
	return executor.TargetSuccess(plan.OpNavigateTo, target), nil
}

// Grasp always succeeds without touching the simulation.
func (e *Executor) Grasp(ctx context.Context, target string) (executor.Result, error) {
	return executor.TargetSuccess(plan.OpGrasp, target), nil
}

// Open always succeeds without touching the simulation.
func (e *Executor) Open(ctx context.Context, target string) (executor.Result, error) {
	return executor.TargetSuccess(plan.OpOpen, target), nil
}

// Close always succeeds without touching the simulation.
func (e *Executor) Close(ctx context.Context, target string) (executor.Result, error) {
	return executor.TargetSuccess(plan.OpClose, target), nil
}

// Release always succeeds without touching the simulation.
func (e *Executor) Release(ctx context.Context) (executor.Result, error) {
	return executor.Result{Success: true, Op: plan.OpRelease}, nil
}

// PlaceOnTop moves object to just above the center of receptacle's top surface.
func (e *Executor) PlaceOnTop(ctx context.Context, object, receptacle string) (executor.Result, error) {
	objects, err := e.env.Objects(ctx)
	if err != nil {
		return executor.Result{}, errors.Wrap(err, "listing scene objects")
	}
	obj, okObj := e.resolver.Resolve(object, objects, nil)
	rec, okRec := e.resolver.Resolve(receptacle, objects, nil)
	if !okObj || !okRec {
		return executor.Failure(plan.OpPlaceOnTop, executor.ReasonPlacementNotFound), nil
	}

	pos := PlacementFor(rec)
	if err := e.env.SetPosition(ctx, obj.Name, pos); err != nil {
		return executor.Result{}, errors.Wrapf(err, "moving %s", obj.Name)
	}
	e.logger.Debugw("teleported", "object", obj.Name, "receptacle", rec.Name, "position", pos)
	return executor.PlacementSuccess(plan.OpPlaceOnTop, object, receptacle), nil
}

// PlaceInside is approximated by PlaceOnTop; its result is PlaceOnTop's, unchanged.
func (e *Executor) PlaceInside(ctx context.Context, object, receptacle string) (executor.Result, error) {
	return e.PlaceOnTop(ctx, object, receptacle)
}

// PlacementFor returns where an object placed on rec ends up.
func PlacementFor(rec sim.Object) r3.Vector {
	if rec.AABB == nil {
		return FallbackPosition
	}
	return rec.AABB.CenterTop(Clearance)
}
