// Package eval runs the evaluation loop: for every episode it resets the simulation, asks the
// planning service for a plan, executes it step by step and scores the result by the fraction of
// goal predicates satisfied.
package eval

import (
	"context"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/makolon/og-vlm/config"
	"github.com/makolon/og-vlm/executor"
	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/planner"
	"github.com/makolon/og-vlm/sim"
)

// Runner owns the environment, planner and executor of a run. It is driven from a single
// goroutine.
type Runner struct {
	cfg      *config.Config
	env      sim.Environment
	planner  planner.Planner
	executor executor.Executor
	kind     executor.Kind
	logger   logging.Logger
	clock    clock.Clock
	metrics  *Metrics
	runID    string
	progress func(done, total int)
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used to time episodes.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithMetrics records the run into m instead of a private set of collectors.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithProgress calls f after every finished episode.
func WithProgress(f func(done, total int)) Option {
	return func(r *Runner) {
		r.progress = f
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// NewRunner builds the executor cfg asks for, falling back to teleport when it is unavailable in
// env, and returns a runner ready to evaluate.
func NewRunner(
	ctx context.Context,
	cfg *config.Config,
	env sim.Environment,
	pl planner.Planner,
	logger logging.Logger,
	opts ...Option,
) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:     cfg,
		env:     env,
		planner: pl,
		logger:  logger,
		clock:   clock.New(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics()
	}

	ex, kind, err := executor.Build(ctx, executor.Kind(cfg.Executor), env, logger.Sublogger("executor"))
	if err != nil {
		return nil, err
	}
	r.executor, r.kind = ex, kind
	return r, nil
}

// Kind returns the execution strategy that actually runs.
func (r *Runner) Kind() executor.Kind {
	return r.kind
}

// RunID returns the run's identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// Run evaluates every episode and summarizes them. Step failures and skipped steps never end an
// episode early; environment faults and cancellation end the run with an error.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	r.logger.Infow("starting evaluation",
		"run_id", r.runID,
		"activity", r.cfg.Activity,
		"episodes", r.cfg.Episodes,
		"provider", r.cfg.Provider,
		"model", r.cfg.Model,
		"executor", r.kind,
	)
	records := make([]Episode, 0, r.cfg.Episodes)
	for i := 0; i < r.cfg.Episodes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ep, err := r.runEpisode(ctx, i)
		if err != nil {
			return nil, errors.Wrapf(err, "episode %d", i+1)
		}
		r.metrics.observeEpisode(ep)
		r.logger.Infow("episode finished",
			"episode", i+1,
			"fraction", ep.Fraction,
			"success", ep.Success,
			"steps", ep.Steps,
			"failed", ep.Failed,
			"skipped", ep.Skipped,
		)
		records = append(records, ep)
		if r.progress != nil {
			r.progress(len(records), r.cfg.Episodes)
		}
	}
	return Summarize(r.runID, r.cfg, r.kind, records), nil
}

func (r *Runner) runEpisode(ctx context.Context, index int) (Episode, error) {
	ep := Episode{Index: index}
	start := r.clock.Now()

	if err := r.env.Reset(ctx); err != nil {
		return ep, errors.Wrap(err, "resetting environment")
	}
	objects, err := r.env.Objects(ctx)
	if err != nil {
		return ep, errors.Wrap(err, "listing scene objects")
	}
	req := planner.Request{
		Activity: r.cfg.Activity,
		Catalog:  sim.Catalog(objects, r.cfg.MaxCatalog),
		Notes:    r.cfg.Notes,
	}
	img, ok, err := r.env.Snapshot(ctx)
	switch {
	case err != nil:
		r.logger.Warnw("snapshot failed, planning without an image", "episode", index+1, "error", err)
	case ok:
		req.Image = img
	}

	p, ok, err := r.requestPlan(ctx, index, req)
	if err != nil {
		return ep, err
	}
	ep.PlanFailed = !ok

	for i, step := range p.Steps {
		ep.Steps++
		res, err := executor.Dispatch(ctx, r.executor, step)
		if errors.Is(err, executor.ErrUnhandled) {
			ep.Skipped++
			r.metrics.observeStep(step, outcomeSkipped)
			r.logger.Warnw("skipping unknown op", "episode", index+1, "step", i+1, "op", step.Op())
			continue
		}
		if err != nil {
			return ep, errors.Wrapf(err, "step %d %s", i+1, step)
		}
		if res.Success {
			ep.Succeeded++
			r.metrics.observeStep(step, outcomeSucceeded)
			r.logger.Debugw("step succeeded", "episode", index+1, "step", i+1, "result", res.Info())
			continue
		}
		ep.Failed++
		r.metrics.observeStep(step, outcomeFailed)
		r.logger.Warnw("step failed", "episode", index+1, "step", i+1, "result", res.Info())
	}

	frac, ok, err := r.env.GoalFraction(ctx)
	if err != nil {
		return ep, errors.Wrap(err, "scoring episode")
	}
	if ok && (math.IsNaN(frac) || math.IsInf(frac, 0)) {
		r.logger.Warnw("goal fraction is not a number", "episode", index+1, "fraction", frac)
		ok = false
	}
	if !ok {
		r.logger.Warnw("goal fraction unavailable, scoring episode as 0", "episode", index+1)
		frac = 0
	}
	ep.FractionAvailable = ok
	ep.Fraction = lo.Clamp(frac, 0, 1)
	ep.Success = ep.Fraction >= r.cfg.SuccessThreshold
	ep.Duration = r.clock.Since(start)
	return ep, nil
}

// requestPlan asks for a plan, retrying failed requests. ok is false when every attempt failed
// and the skip policy applies, in which case the episode is scored from the scene as reset.
func (r *Runner) requestPlan(ctx context.Context, index int, req planner.Request) (plan.Plan, bool, error) {
	var errs error
	for attempt := 1; attempt <= r.cfg.PlanRetries+1; attempt++ {
		p, err := r.planner.Plan(ctx, req)
		if err == nil {
			r.logger.Debugw("plan received", "episode", index+1, "plan", p.String())
			return p, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return plan.Plan{}, false, ctxErr
		}
		r.logger.Warnw("planning failed", "episode", index+1, "attempt", attempt, "error", err)
		errs = multierr.Append(errs, err)
	}
	if r.cfg.PlanFailure == config.PlanFailureAbort {
		return plan.Plan{}, false, errors.Wrap(errs, "obtaining plan")
	}
	r.logger.Warnw("no plan obtained, scoring the untouched scene", "episode", index+1)
	return plan.Plan{}, false, nil
}

// Evaluate runs the evaluation cfg describes end to end: it bootstraps the simulation backend and
// the planning provider, runs every episode and closes the simulation.
func Evaluate(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (_ *Summary, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pl, err := planner.New(cfg.Provider, cfg.PlannerSettings(), logger.Sublogger("planner"))
	if err != nil {
		return nil, err
	}
	env, err := sim.New(ctx, cfg.Sim.Backend, cfg.SimSettings(), logger.Sublogger("sim"))
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, env.Close(context.WithoutCancel(ctx)))
	}()

	runner, err := NewRunner(ctx, cfg, env, pl, logger, opts...)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}
