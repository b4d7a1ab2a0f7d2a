package plan

import "fmt"

// Step is one action of a plan. The set of implementations is closed: the seven executable kinds
// plus Unknown and Malformed, which decoding produces for steps that cannot be executed.
type Step interface {
	Op() Op
	String() string
	wire() WireStep
}

// NavigateTo moves the agent next to Target.
type NavigateTo struct{ Target string }

// Grasp picks up Target.
type Grasp struct{ Target string }

// PlaceOnTop puts Object on the top surface of Receptacle.
type PlaceOnTop struct{ Object, Receptacle string }

// PlaceInside puts Object inside Receptacle.
type PlaceInside struct{ Object, Receptacle string }

// Open drives the articulated Target to its open state.
type Open struct{ Target string }

// Close drives the articulated Target to its closed state.
type Close struct{ Target string }

// Release clears the gripper.
type Release struct{}

// Unknown is a step whose op is not one of the known operations. It is kept so consumers can
// report it, and is never executed.
type Unknown struct{ Raw WireStep }

// Malformed is a step with a known op that lacks one of its required arguments.
type Malformed struct {
	Raw     WireStep
	Missing []string
}

// Op returns NAVIGATE_TO.
func (s NavigateTo) Op() Op { return OpNavigateTo }

// Op returns GRASP.
func (s Grasp) Op() Op { return OpGrasp }

// Op returns PLACE_ON_TOP.
func (s PlaceOnTop) Op() Op { return OpPlaceOnTop }

// Op returns PLACE_INSIDE.
func (s PlaceInside) Op() Op { return OpPlaceInside }

// Op returns OPEN.
func (s Open) Op() Op { return OpOpen }

// Op returns CLOSE.
func (s Close) Op() Op { return OpClose }

// Op returns RELEASE.
func (s Release) Op() Op { return OpRelease }

// Op returns the upper-cased op as received.
func (s Unknown) Op() Op {
	op, _ := ParseOp(s.Raw.Op)
	return op
}

// Op returns the normalized op.
func (s Malformed) Op() Op {
	op, _ := ParseOp(s.Raw.Op)
	return op
}

func (s NavigateTo) String() string  { return fmt.Sprintf("%s(%s)", OpNavigateTo, s.Target) }
func (s Grasp) String() string       { return fmt.Sprintf("%s(%s)", OpGrasp, s.Target) }
func (s Open) String() string        { return fmt.Sprintf("%s(%s)", OpOpen, s.Target) }
func (s Close) String() string       { return fmt.Sprintf("%s(%s)", OpClose, s.Target) }
func (s Release) String() string     { return string(OpRelease) + "()" }
func (s Unknown) String() string     { return fmt.Sprintf("%s(?)", s.Op()) }
func (s Malformed) String() string   { return fmt.Sprintf("%s(missing %v)", s.Op(), s.Missing) }
func (s PlaceOnTop) String() string  { return fmt.Sprintf("%s(%s -> %s)", OpPlaceOnTop, s.Object, s.Receptacle) }
func (s PlaceInside) String() string { return fmt.Sprintf("%s(%s -> %s)", OpPlaceInside, s.Object, s.Receptacle) }

func (s NavigateTo) wire() WireStep { return WireStep{Op: string(OpNavigateTo), Target: s.Target} }
func (s Grasp) wire() WireStep      { return WireStep{Op: string(OpGrasp), Target: s.Target} }
func (s Open) wire() WireStep       { return WireStep{Op: string(OpOpen), Target: s.Target} }
func (s Close) wire() WireStep      { return WireStep{Op: string(OpClose), Target: s.Target} }
func (s Release) wire() WireStep    { return WireStep{Op: string(OpRelease)} }
func (s Unknown) wire() WireStep    { return s.Raw }
func (s Malformed) wire() WireStep  { return s.Raw }

func (s PlaceOnTop) wire() WireStep {
	return WireStep{Op: string(OpPlaceOnTop), Object: s.Object, Receptacle: s.Receptacle}
}

func (s PlaceInside) wire() WireStep {
	return WireStep{Op: string(OpPlaceInside), Object: s.Object, Receptacle: s.Receptacle}
}
