package primitive

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/makolon/og-vlm/executor"
	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/resolve"
	"github.com/makolon/og-vlm/sim"
	"github.com/makolon/og-vlm/testutils/inject"
)

type call struct {
	op      plan.Op
	objects []string
}

// newPrimitiveEnv returns an environment whose provider emits two actions per op and records the
// objects it was asked about.
func newPrimitiveEnv(objects []sim.Object) (*inject.PrimitiveEnvironment, *[]call, *int) {
	var calls []call
	var steps int
	env := &inject.PrimitiveEnvironment{
		Environment: inject.Environment{
			ObjectsFunc: func(context.Context) ([]sim.Object, error) {
				return objects, nil
			},
			AgentPositionFunc: func(context.Context) (r3.Vector, error) {
				return r3.Vector{}, nil
			},
			StepFunc: func(context.Context, sim.Action) error {
				steps++
				return nil
			},
		},
	}
	env.PrimitiveActionsFunc = func(_ context.Context, op plan.Op, objs ...sim.Object) ([]sim.Action, error) {
		c := call{op: op}
		for _, o := range objs {
			c.objects = append(c.objects, o.Name)
		}
		calls = append(calls, c)
		return []sim.Action{{0, 0}, {0, 1}}, nil
	}
	return env, &calls, &steps
}

func kitchen() []sim.Object {
	return []sim.Object{
		{Name: "apple_far", Position: r3.Vector{X: 10}},
		{Name: "apple_near", Position: r3.Vector{X: 1}},
		{Name: "fridge_1", Position: r3.Vector{Y: 3}},
		{Name: "table_1", Position: r3.Vector{Y: -2}},
	}
}

func mustNew(t *testing.T, env sim.Environment, opts ...Option) *Executor {
	t.Helper()
	avail := New(context.Background(), env, logging.NewTestLogger(t), opts...)
	test.That(t, avail.Available(), test.ShouldBeTrue)
	return avail.Executor.(*Executor)
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	t.Run("plain environment has no provider", func(t *testing.T) {
		avail := New(ctx, &inject.Environment{}, logger)
		test.That(t, avail.Available(), test.ShouldBeFalse)
		test.That(t, avail.Reason, test.ShouldContainSubstring, "no primitive actions")
	})

	t.Run("provider probe failure", func(t *testing.T) {
		env, _, _ := newPrimitiveEnv(kitchen())
		env.ProbePrimitivesFunc = func(context.Context) error {
			return errors.Wrap(sim.ErrPrimitivesUnsupported, "engine build lacks action primitives")
		}
		avail := New(ctx, env, logger)
		test.That(t, avail.Available(), test.ShouldBeFalse)
		test.That(t, avail.Reason, test.ShouldContainSubstring, "engine build lacks action primitives")
	})

	t.Run("injected provider", func(t *testing.T) {
		provider, _, _ := newPrimitiveEnv(kitchen())
		avail := New(ctx, &inject.Environment{}, logger, WithProvider(provider))
		test.That(t, avail.Available(), test.ShouldBeTrue)
	})

	t.Run("registered", func(t *testing.T) {
		env, _, _ := newPrimitiveEnv(kitchen())
		test.That(t, executor.Construct(ctx, executor.KindPrimitives, env, logger).Available(), test.ShouldBeTrue)
		test.That(t, executor.Construct(ctx, executor.KindPrimitives, &inject.Environment{}, logger).Available(),
			test.ShouldBeFalse)
	})
}

func TestTargetedCapabilities(t *testing.T) {
	ctx := context.Background()

	t.Run("nearest match is used", func(t *testing.T) {
		env, calls, steps := newPrimitiveEnv(kitchen())
		res, err := mustNew(t, env).Grasp(ctx, "apple")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res, test.ShouldResemble, executor.TargetSuccess(plan.OpGrasp, "apple"))
		test.That(t, *calls, test.ShouldResemble, []call{{plan.OpGrasp, []string{"apple_near"}}})
		test.That(t, *steps, test.ShouldEqual, 2)
	})

	t.Run("first match wins with a first-match resolver", func(t *testing.T) {
		env, calls, _ := newPrimitiveEnv(kitchen())
		_, err := mustNew(t, env, WithResolver(resolve.FirstMatch{})).NavigateTo(ctx, "apple")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, (*calls)[0].objects, test.ShouldResemble, []string{"apple_far"})
	})

	t.Run("not found skips the provider", func(t *testing.T) {
		env, calls, steps := newPrimitiveEnv(kitchen())
		ex := mustNew(t, env)

		res, err := ex.NavigateTo(ctx, "sofa")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Info(), test.ShouldResemble, map[string]interface{}{"op": "NAVIGATE_TO", "reason": "target not found"})

		res, err = ex.Grasp(ctx, "sofa")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Reason, test.ShouldEqual, executor.ReasonObjectNotFound)

		res, err = ex.Open(ctx, "sofa")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Reason, test.ShouldEqual, executor.ReasonTargetNotFound)

		test.That(t, *calls, test.ShouldBeEmpty)
		test.That(t, *steps, test.ShouldEqual, 0)
	})

	t.Run("open and close", func(t *testing.T) {
		env, calls, _ := newPrimitiveEnv(kitchen())
		ex := mustNew(t, env)
		res, err := ex.Open(ctx, "fridge")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Success, test.ShouldBeTrue)
		res, err = ex.Close(ctx, "fridge")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Success, test.ShouldBeTrue)
		test.That(t, *calls, test.ShouldResemble, []call{
			{plan.OpOpen, []string{"fridge_1"}},
			{plan.OpClose, []string{"fridge_1"}},
		})
	})
}

func TestPlacement(t *testing.T) {
	ctx := context.Background()

	t.Run("object then receptacle", func(t *testing.T) {
		env, calls, _ := newPrimitiveEnv(kitchen())
		ex := mustNew(t, env)
		res, err := ex.PlaceInside(ctx, "apple", "fridge")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res, test.ShouldResemble, executor.PlacementSuccess(plan.OpPlaceInside, "apple", "fridge"))
		res, err = ex.PlaceOnTop(ctx, "apple", "table")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Op, test.ShouldEqual, plan.OpPlaceOnTop)
		test.That(t, *calls, test.ShouldResemble, []call{
			{plan.OpPlaceInside, []string{"apple_near", "fridge_1"}},
			{plan.OpPlaceOnTop, []string{"apple_near", "table_1"}},
		})
	})

	t.Run("unresolved receptacle", func(t *testing.T) {
		env, calls, _ := newPrimitiveEnv(kitchen())
		res, err := mustNew(t, env).PlaceOnTop(ctx, "apple", "nonexistent_thing")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Reason, test.ShouldEqual, executor.ReasonPlacementNotFound)
		test.That(t, *calls, test.ShouldBeEmpty)
	})
}

func TestRelease(t *testing.T) {
	env, calls, steps := newPrimitiveEnv(kitchen())
	res, err := mustNew(t, env).Release(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Success, test.ShouldBeTrue)
	test.That(t, (*calls)[0].op, test.ShouldEqual, plan.OpRelease)
	test.That(t, (*calls)[0].objects, test.ShouldBeEmpty)
	test.That(t, *steps, test.ShouldEqual, 2)
}

func TestFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected action is a failed result", func(t *testing.T) {
		env, _, steps := newPrimitiveEnv(kitchen())
		env.PrimitiveActionsFunc = func(context.Context, plan.Op, ...sim.Object) ([]sim.Action, error) {
			return nil, sim.RejectAction(errors.New("grasp planning failed"))
		}
		res, err := mustNew(t, env).Grasp(ctx, "apple")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Success, test.ShouldBeFalse)
		test.That(t, res.Reason, test.ShouldEqual, "primitive failed: grasp planning failed")
		test.That(t, *steps, test.ShouldEqual, 0)
	})

	t.Run("provider fault is an environment fault", func(t *testing.T) {
		env, _, steps := newPrimitiveEnv(kitchen())
		env.PrimitiveActionsFunc = func(context.Context, plan.Op, ...sim.Object) ([]sim.Action, error) {
			return nil, errors.New("engine primitive_actions: connection refused")
		}
		_, err := mustNew(t, env).Grasp(ctx, "apple")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, sim.ErrActionRejected), test.ShouldBeFalse)
		test.That(t, err.Error(), test.ShouldContainSubstring, "GRASP primitive")
		test.That(t, *steps, test.ShouldEqual, 0)
	})

	t.Run("step failure is an environment fault", func(t *testing.T) {
		env, _, _ := newPrimitiveEnv(kitchen())
		env.StepFunc = func(context.Context, sim.Action) error {
			return errors.New("physics diverged")
		}
		_, err := mustNew(t, env).Grasp(ctx, "apple")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "physics diverged")
	})

	t.Run("cancellation is not a failed result", func(t *testing.T) {
		env, _, _ := newPrimitiveEnv(kitchen())
		cancelCtx, cancel := context.WithCancel(ctx)
		env.PrimitiveActionsFunc = func(context.Context, plan.Op, ...sim.Object) ([]sim.Action, error) {
			cancel()
			return nil, context.Canceled
		}
		_, err := mustNew(t, env).Grasp(cancelCtx, "apple")
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	})
}
