// Package plan defines the structured plans emitted by the planning service and their wire format:
//
//	{"plan": [{"op": "GRASP", "target": "apple_1"}, ...]}
package plan

import (
	"encoding/json"
	"strings"
)

// WireStep is a plan step as exchanged with the planning service. Fields that do not apply to the
// op are omitted.
type WireStep struct {
	Op         string `json:"op" jsonschema:"enum=NAVIGATE_TO,enum=OPEN,enum=GRASP,enum=PLACE_ON_TOP,enum=PLACE_INSIDE,enum=CLOSE,enum=RELEASE"`
	Target     string `json:"target,omitempty"`
	Object     string `json:"object,omitempty"`
	Receptacle string `json:"receptacle,omitempty"`
}

// WirePlan is the top-level object the planning service returns.
type WirePlan struct {
	Plan []WireStep `json:"plan"`
}

// Plan is an ordered, strictly linear sequence of steps. Order is execution order.
type Plan struct {
	Steps []Step
}

// New returns a plan of the given steps.
func New(steps ...Step) Plan {
	return Plan{Steps: steps}
}

// Len returns the number of steps.
func (p Plan) Len() int {
	return len(p.Steps)
}

// Wire converts the plan back to its wire representation.
func (p Plan) Wire() WirePlan {
	out := WirePlan{Plan: make([]WireStep, 0, len(p.Steps))}
	for _, s := range p.Steps {
		out.Plan = append(out.Plan, s.wire())
	}
	return out
}

// MarshalJSON encodes the plan in its wire format.
func (p Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Wire())
}

// String renders the plan as a compact, human readable sequence.
func (p Plan) String() string {
	parts := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		parts = append(parts, s.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FromWire converts a wire step into a typed step. Unrecognized ops become Unknown; known ops
// missing a required argument become Malformed. Blank arguments count as missing.
func FromWire(w WireStep) Step {
	op, known := ParseOp(w.Op)
	if !known {
		return Unknown{Raw: w}
	}

	target := strings.TrimSpace(w.Target)
	object := strings.TrimSpace(w.Object)
	receptacle := strings.TrimSpace(w.Receptacle)
	present := map[string]bool{
		ArgTarget:     target != "",
		ArgObject:     object != "",
		ArgReceptacle: receptacle != "",
	}
	var missing []string
	for _, arg := range op.RequiredArgs() {
		if !present[arg] {
			missing = append(missing, arg)
		}
	}
	if len(missing) > 0 {
		return Malformed{Raw: w, Missing: missing}
	}

	switch op {
	case OpNavigateTo:
		return NavigateTo{Target: target}
	case OpGrasp:
		return Grasp{Target: target}
	case OpPlaceOnTop:
		return PlaceOnTop{Object: object, Receptacle: receptacle}
	case OpPlaceInside:
		return PlaceInside{Object: object, Receptacle: receptacle}
	case OpOpen:
		return Open{Target: target}
	case OpClose:
		return Close{Target: target}
	case OpRelease:
		return Release{}
	default:
		return Unknown{Raw: w}
	}
}
