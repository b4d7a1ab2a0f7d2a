// Package primitive implements the physically grounded execution strategy: each capability
// resolves its names against the scene, asks the engine for a primitive action sequence and steps
// the simulation through it.
package primitive

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

func init() {
	executor.Register(executor.KindPrimitives, func(
		ctx context.Context, env sim.Environment, logger logging.Logger,
	) executor.Availability {
		return New(ctx, env, logger)
	})
}

// Executor is the primitive execution strategy.
type Executor struct {
	env      sim.Environment
	provider sim.PrimitiveProvider
	resolver resolve.Strategy
	logger   logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithProvider sets the primitive provider. By default the environment itself is used when it
// implements sim.PrimitiveProvider.
func WithProvider(p sim.PrimitiveProvider) Option {
	return func(e *Executor) {
		e.provider = p
	}
}

// WithResolver overrides the name resolution strategy. The default picks the match nearest to
// the robot.
func WithResolver(s resolve.Strategy) Option {
	return func(e *Executor) {
		e.resolver = s
	}
}

// New constructs the strategy for env. It is unavailable when no primitive provider can be found
// or the provider reports that its engine lacks primitives.
func New(ctx context.Context, env sim.Environment, logger logging.Logger, opts ...Option) executor.Availability {
	e := &Executor{env: env, resolver: resolve.NearestMatch{}, logger: logger}
	if p, ok := env.(sim.PrimitiveProvider); ok {
		e.provider = p
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider == nil {
		return executor.Unavailable("environment provides no primitive actions")
	}
	if prober, ok := e.provider.(sim.PrimitiveProber); ok {
		if err := prober.ProbePrimitives(ctx); err != nil {
			return executor.Unavailable(err.Error())
		}
	}
	return executor.Ready(e)
}

// NavigateTo drives the robot next to the nearest object matching target.
func (e *Executor) NavigateTo(ctx context.Context, target string) (executor.Result, error) {
	return e.targeted(ctx, plan.OpNavigateTo, target, executor.ReasonTargetNotFound)
}

// Grasp picks up the nearest object matching target.
func (e *Executor) Grasp(ctx context.Context, target string) (executor.Result, error) {
	return e.targeted(ctx, plan.OpGrasp, target, executor.ReasonObjectNotFound)
}

// Open opens the nearest articulated object matching target.
func (e *Executor) Open(ctx context.Context, target string) (executor.Result, error) {
	return e.targeted(ctx, plan.OpOpen, target, executor.ReasonTargetNotFound)
}

// Close closes the nearest articulated object matching target.
func (e *Executor) Close(ctx context.Context, target string) (executor.Result, error) {
	return e.targeted(ctx, plan.OpClose, target, executor.ReasonTargetNotFound)
}

// PlaceOnTop places object on receptacle.
func (e *Executor) PlaceOnTop(ctx context.Context, object, receptacle string) (executor.Result, error) {
	return e.placement(ctx, plan.OpPlaceOnTop, object, receptacle)
}

// PlaceInside places object inside receptacle.
func (e *Executor) PlaceInside(ctx context.Context, object, receptacle string) (executor.Result, error) {
	return e.placement(ctx, plan.OpPlaceInside, object, receptacle)
}

// Release opens the gripper.
func (e *Executor) Release(ctx context.Context) (executor.Result, error) {
	reason, err := e.run(ctx, plan.OpRelease)
	if err != nil || reason != "" {
		return executor.Failure(plan.OpRelease, reason), err
	}
	return executor.Result{Success: true, Op: plan.OpRelease}, nil
}

func (e *Executor) targeted(ctx context.Context, op plan.Op, target, notFound string) (executor.Result, error) {
	objects, err := e.scene(ctx)
	if err != nil {
		return executor.Result{}, err
	}
	obj, found := e.resolver.Resolve(target, objects.list, objects.from)
	if !found {
		return executor.Failure(op, notFound), nil
	}
	reason, err := e.run(ctx, op, obj)
	if err != nil || reason != "" {
		return executor.Failure(op, reason), err
	}
	return executor.TargetSuccess(op, target), nil
}

func (e *Executor) placement(ctx context.Context, op plan.Op, object, receptacle string) (executor.Result, error) {
	objects, err := e.scene(ctx)
	if err != nil {
		return executor.Result{}, err
	}
	obj, okObj := e.resolver.Resolve(object, objects.list, objects.from)
	rec, okRec := e.resolver.Resolve(receptacle, objects.list, objects.from)
	if !okObj || !okRec {
		return executor.Failure(op, executor.ReasonPlacementNotFound), nil
	}
	reason, err := e.run(ctx, op, obj, rec)
	if err != nil || reason != "" {
		return executor.Failure(op, reason), err
	}
	return executor.PlacementSuccess(op, object, receptacle), nil
}

// run asks the provider for op's actions and steps through them. A non-empty reason reports that
// the engine rejected op; a returned error is an environment fault.
func (e *Executor) run(ctx context.Context, op plan.Op, objects ...sim.Object) (string, error) {
	actions, err := e.provider.PrimitiveActions(ctx, op, objects...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if !errors.Is(err, sim.ErrActionRejected) && !errors.Is(err, sim.ErrPrimitivesUnsupported) {
			return "", errors.Wrapf(err, "%s primitive", op)
		}
		e.logger.Debugw("primitive failed", "op", op, "error", err)
		return "primitive failed: " + err.Error(), nil
	}
	for i, action := range actions {
		if err := e.env.Step(ctx, action); err != nil {
			return "", errors.Wrapf(err, "%s action %d of %d", op, i+1, len(actions))
		}
	}
	e.logger.Debugw("primitive executed", "op", op, "actions", len(actions))
	return "", nil
}

type scene struct {
	list []sim.Object
	from *r3.Vector
}

func (e *Executor) scene(ctx context.Context) (scene, error) {
	objects, err := e.env.Objects(ctx)
	if err != nil {
		return scene{}, errors.Wrap(err, "listing scene objects")
	}
	from, err := e.env.AgentPosition(ctx)
	if err != nil {
		return scene{}, errors.Wrap(err, "reading robot position")
	}
	return scene{list: objects, from: &from}, nil
}
