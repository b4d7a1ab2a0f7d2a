package fake

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/sim"
	"github.com/makolon/og-vlm/spatialmath"
)

const (
	// Reach is how far, in the horizontal plane, the robot can manipulate from.
	Reach = 1.5
	// ticksPerPrimitive is the length of every primitive action sequence.
	ticksPerPrimitive = 4
	// actionDims is the width of a primitive action: sequence id, tick index, sequence length.
	actionDims = 3
)

// ProbePrimitives reports whether the robot can execute primitive actions.
func (e *Environment) ProbePrimitives(ctx context.Context) error {
	if !e.primitives {
		return errors.Wrap(sim.ErrPrimitivesUnsupported, "robot has no manipulator")
	}
	return nil
}

// PrimitiveActions validates op against the current state and returns the action sequence that
// performs it. The effect is applied when the sequence's last action is stepped.
func (e *Environment) PrimitiveActions(ctx context.Context, op plan.Op, objects ...sim.Object) ([]sim.Action, error) {
	if err := e.ProbePrimitives(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	bodies := make([]*Body, 0, len(objects))
	for _, o := range objects {
		b := e.find(o.Name)
		if b == nil {
			return nil, sim.RejectAction(errors.Errorf("no object named %q", o.Name))
		}
		bodies = append(bodies, b)
	}
	if want := len(op.RequiredArgs()); len(bodies) != want {
		return nil, sim.RejectAction(errors.Errorf("%s takes %d objects, got %d", op, want, len(bodies)))
	}

	effect, err := e.plan(op, bodies)
	if err != nil {
		return nil, sim.RejectAction(err)
	}

	id := e.nextID
	e.nextID++
	e.pending[id] = effect
	actions := make([]sim.Action, 0, ticksPerPrimitive)
	for i := 0; i < ticksPerPrimitive; i++ {
		actions = append(actions, sim.Action{float64(id), float64(i), ticksPerPrimitive})
	}
	return actions, nil
}

// plan checks op's preconditions and returns its effect. Called with mu held.
func (e *Environment) plan(op plan.Op, bodies []*Body) (func(), error) {
	switch op {
	case plan.OpNavigateTo:
		target := bodies[0]
		return func() {
			e.agent = r3.Vector{X: target.Position.X, Y: target.Position.Y}
			e.carry()
		}, nil
	case plan.OpGrasp:
		target := bodies[0]
		if e.held != "" {
			return nil, errors.Errorf("already holding %s", e.held)
		}
		if err := e.inReach(target); err != nil {
			return nil, err
		}
		return func() { e.held = target.Name }, nil
	case plan.OpOpen, plan.OpClose:
		target := bodies[0]
		if !target.Openable {
			return nil, errors.Errorf("%s cannot be opened or closed", target.Name)
		}
		if err := e.inReach(target); err != nil {
			return nil, err
		}
		open := op == plan.OpOpen
		return func() { target.Open = open }, nil
	case plan.OpPlaceOnTop, plan.OpPlaceInside:
		obj, rec := bodies[0], bodies[1]
		if e.held != obj.Name {
			return nil, errors.Errorf("not holding %s", obj.Name)
		}
		if err := e.inReach(rec); err != nil {
			return nil, err
		}
		box := boxOf(rec)
		if box == nil {
			return nil, errors.Errorf("%s has no extent to place onto", rec.Name)
		}
		if op == plan.OpPlaceInside && rec.Openable && !rec.Open {
			return nil, errors.Errorf("%s is closed", rec.Name)
		}
		dest := box.Center()
		if op == plan.OpPlaceOnTop {
			dest = box.CenterTop(obj.Size.Z / 2)
		}
		return func() {
			obj.Position = dest
			e.held = ""
		}, nil
	case plan.OpRelease:
		return func() { e.held = "" }, nil
	default:
		return nil, errors.Errorf("no primitive for %s", op)
	}
}

func (e *Environment) inReach(b *Body) error {
	flat := func(v r3.Vector) r3.Vector { return r3.Vector{X: v.X, Y: v.Y} }
	if d := spatialmath.Distance(flat(e.agent), flat(b.Position)); d > Reach {
		return errors.Errorf("%s is out of reach (%.2f away)", b.Name, d)
	}
	return nil
}

// carry keeps a held object with the robot.
func (e *Environment) carry() {
	if b := e.find(e.held); b != nil {
		b.Position = r3.Vector{X: e.agent.X, Y: e.agent.Y, Z: b.Position.Z}
	}
}
