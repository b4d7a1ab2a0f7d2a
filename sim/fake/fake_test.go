package fake

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/sim"
)

func newTestEnv(t *testing.T, activity string, opts ...Option) *Environment {
	t.Helper()
	scene, err := LookupScene(activity)
	test.That(t, err, test.ShouldBeNil)
	return NewEnvironment(scene, logging.NewTestLogger(t), opts...)
}

// runPrimitive steps through op's actions, as the primitive executor would.
func runPrimitive(ctx context.Context, e *Environment, op plan.Op, names ...string) error {
	objects, err := e.Objects(ctx)
	if err != nil {
		return err
	}
	var args []sim.Object
	for _, name := range names {
		o, ok := sim.FindObject(objects, name)
		if !ok {
			return errors.Errorf("missing %s", name)
		}
		args = append(args, o)
	}
	actions, err := e.PrimitiveActions(ctx, op, args...)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if err := e.Step(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func TestRegisteredBackend(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	env, err := sim.New(ctx, BackendName, sim.Settings{Activity: "setting_the_table", Robot: "r1pro"}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, env.(sim.PrimitiveProber).ProbePrimitives(ctx), test.ShouldBeNil)

	env, err = sim.New(ctx, BackendName, sim.Settings{Activity: "setting_the_table", Robot: "turtlebot"}, logger)
	test.That(t, err, test.ShouldBeNil)
	err = env.(sim.PrimitiveProber).ProbePrimitives(ctx)
	test.That(t, errors.Is(err, sim.ErrPrimitivesUnsupported), test.ShouldBeTrue)

	_, err = sim.New(ctx, BackendName, sim.Settings{Activity: "juggling"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown activity")
}

func TestGoalFraction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "setting_the_table")

	frac, ok, err := env.GoalFraction(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frac, test.ShouldEqual, 0)

	test.That(t, env.SetPosition(ctx, "plate_1", r3.Vector{X: 2, Y: 0, Z: 0.85}), test.ShouldBeNil)
	frac, _, err = env.GoalFraction(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frac, test.ShouldEqual, 0.5)

	test.That(t, env.SetPosition(ctx, "cup_1", r3.Vector{X: 2.3, Y: 0.2, Z: 0.85}), test.ShouldBeNil)
	frac, _, err = env.GoalFraction(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frac, test.ShouldEqual, 1)

	t.Run("reset restores the initial state", func(t *testing.T) {
		test.That(t, env.Reset(ctx), test.ShouldBeNil)
		frac, _, err := env.GoalFraction(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, frac, test.ShouldEqual, 0)
	})

	t.Run("unknown object", func(t *testing.T) {
		test.That(t, env.SetPosition(ctx, "sofa", r3.Vector{}), test.ShouldNotBeNil)
	})

	t.Run("no goals is not computable", func(t *testing.T) {
		empty := NewEnvironment(Scene{Bodies: []Body{{Name: "box"}}}, logging.NewTestLogger(t))
		_, ok, err := empty.GoalFraction(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestObjects(t *testing.T) {
	env := newTestEnv(t, "collecting_apples")
	objects, err := env.Objects(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sim.Catalog(objects, 0), test.ShouldResemble, []string{"basket_1", "red_apple", "green_apple", "shelf_1"})

	shelf, ok := sim.FindObject(objects, "shelf_1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, shelf.AABB, test.ShouldBeNil)

	basket, _ := sim.FindObject(objects, "basket_1")
	test.That(t, basket.AABB, test.ShouldNotBeNil)
	test.That(t, basket.AABB.Max.Z, test.ShouldAlmostEqual, 0.3)
}

func TestSeededReset(t *testing.T) {
	ctx := context.Background()
	scene, err := LookupScene("collecting_apples")
	test.That(t, err, test.ShouldBeNil)
	a := newTestEnv(t, "collecting_apples", WithSeed(7))
	b := newTestEnv(t, "collecting_apples", WithSeed(7))

	var apples []r3.Vector
	for i := 0; i < 3; i++ {
		pa, err := a.AgentPosition(ctx)
		test.That(t, err, test.ShouldBeNil)
		pb, err := b.AgentPosition(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pa, test.ShouldResemble, pb)

		objectsA, err := a.Objects(ctx)
		test.That(t, err, test.ShouldBeNil)
		objectsB, err := b.Objects(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, objectsA, test.ShouldResemble, objectsB)

		for j, obj := range objectsA {
			placed := scene.Bodies[j].Position
			switch obj.Name {
			case "red_apple", "green_apple":
				test.That(t, math.Abs(obj.Position.X-placed.X), test.ShouldBeLessThanOrEqualTo, PlacementJitter)
				test.That(t, math.Abs(obj.Position.Y-placed.Y), test.ShouldBeLessThanOrEqualTo, PlacementJitter)
				test.That(t, obj.Position.Z, test.ShouldEqual, placed.Z)
			default:
				test.That(t, obj.Position, test.ShouldResemble, placed)
			}
		}
		red, _ := sim.FindObject(objectsA, "red_apple")
		apples = append(apples, red.Position)

		test.That(t, a.Reset(ctx), test.ShouldBeNil)
		test.That(t, b.Reset(ctx), test.ShouldBeNil)
	}
	test.That(t, apples[0], test.ShouldNotResemble, apples[1])
	test.That(t, apples[1], test.ShouldNotResemble, apples[2])
}

func TestPrimitives(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, "stocking_the_fridge")
		_, err := env.PrimitiveActions(ctx, plan.OpRelease)
		test.That(t, errors.Is(err, sim.ErrPrimitivesUnsupported), test.ShouldBeTrue)
	})

	t.Run("stocking the fridge", func(t *testing.T) {
		env := newTestEnv(t, "stocking_the_fridge", WithPrimitives())

		test.That(t, runPrimitive(ctx, env, plan.OpNavigateTo, "fridge_1"), test.ShouldBeNil)
		err := runPrimitive(ctx, env, plan.OpGrasp, "apple_1")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "out of reach")
		test.That(t, errors.Is(err, sim.ErrActionRejected), test.ShouldBeTrue)

		test.That(t, runPrimitive(ctx, env, plan.OpNavigateTo, "apple_1"), test.ShouldBeNil)
		test.That(t, runPrimitive(ctx, env, plan.OpGrasp, "apple_1"), test.ShouldBeNil)
		test.That(t, env.Held(), test.ShouldEqual, "apple_1")

		test.That(t, runPrimitive(ctx, env, plan.OpNavigateTo, "fridge_1"), test.ShouldBeNil)
		err = runPrimitive(ctx, env, plan.OpPlaceInside, "apple_1", "fridge_1")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "closed")

		test.That(t, runPrimitive(ctx, env, plan.OpOpen, "fridge_1"), test.ShouldBeNil)
		test.That(t, runPrimitive(ctx, env, plan.OpPlaceInside, "apple_1", "fridge_1"), test.ShouldBeNil)
		test.That(t, env.Held(), test.ShouldEqual, "")
		test.That(t, runPrimitive(ctx, env, plan.OpClose, "fridge_1"), test.ShouldBeNil)

		frac, ok, err := env.GoalFraction(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, frac, test.ShouldAlmostEqual, 2.0/3)
		test.That(t, env.Ticks(), test.ShouldEqual, 7*ticksPerPrimitive)
	})

	t.Run("effects apply on the last tick", func(t *testing.T) {
		env := newTestEnv(t, "setting_the_table", WithPrimitives())
		objects, err := env.Objects(ctx)
		test.That(t, err, test.ShouldBeNil)
		plate, _ := sim.FindObject(objects, "plate_1")
		actions, err := env.PrimitiveActions(ctx, plan.OpNavigateTo, plate)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, actions, test.ShouldHaveLength, ticksPerPrimitive)

		before, _ := env.AgentPosition(ctx)
		for _, a := range actions[:len(actions)-1] {
			test.That(t, env.Step(ctx, a), test.ShouldBeNil)
		}
		during, _ := env.AgentPosition(ctx)
		test.That(t, during, test.ShouldResemble, before)

		test.That(t, env.Step(ctx, actions[len(actions)-1]), test.ShouldBeNil)
		after, _ := env.AgentPosition(ctx)
		test.That(t, after, test.ShouldResemble, r3.Vector{X: plate.Position.X, Y: plate.Position.Y})
	})

	t.Run("release and place on top", func(t *testing.T) {
		env := newTestEnv(t, "setting_the_table", WithPrimitives())
		test.That(t, runPrimitive(ctx, env, plan.OpNavigateTo, "cup_1"), test.ShouldBeNil)
		test.That(t, runPrimitive(ctx, env, plan.OpGrasp, "cup_1"), test.ShouldBeNil)
		test.That(t, runPrimitive(ctx, env, plan.OpRelease), test.ShouldBeNil)
		test.That(t, env.Held(), test.ShouldEqual, "")

		test.That(t, runPrimitive(ctx, env, plan.OpGrasp, "cup_1"), test.ShouldBeNil)
		test.That(t, runPrimitive(ctx, env, plan.OpNavigateTo, "table_1"), test.ShouldBeNil)
		test.That(t, runPrimitive(ctx, env, plan.OpPlaceOnTop, "cup_1", "table_1"), test.ShouldBeNil)
		frac, _, err := env.GoalFraction(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, frac, test.ShouldEqual, 0.5)
	})

	t.Run("stale sequence after reset", func(t *testing.T) {
		env := newTestEnv(t, "setting_the_table", WithPrimitives())
		actions, err := env.PrimitiveActions(ctx, plan.OpRelease)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, env.Reset(ctx), test.ShouldBeNil)
		test.That(t, env.Step(ctx, actions[len(actions)-1]), test.ShouldNotBeNil)
	})
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, "setting_the_table")
	_, ok, err := env.Snapshot(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)

	env = newTestEnv(t, "setting_the_table", WithSnapshot(64, 48))
	img, ok, err := env.Snapshot(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 64)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 48)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "setting_the_table")
	test.That(t, env.Close(ctx), test.ShouldBeNil)
	_, err := env.Objects(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, env.Reset(ctx), test.ShouldNotBeNil)
}
