package plan

import "strings"

// Op names one of the seven capabilities an executor supports.
type Op string

// The closed set of plan operations, as they appear on the wire.
const (
	OpNavigateTo  Op = "NAVIGATE_TO"
	OpGrasp       Op = "GRASP"
	OpPlaceOnTop  Op = "PLACE_ON_TOP"
	OpPlaceInside Op = "PLACE_INSIDE"
	OpOpen        Op = "OPEN"
	OpClose       Op = "CLOSE"
	OpRelease     Op = "RELEASE"
)

// Argument names used by plan steps.
const (
	ArgTarget     = "target"
	ArgObject     = "object"
	ArgReceptacle = "receptacle"
)

var ops = []Op{OpNavigateTo, OpOpen, OpGrasp, OpPlaceOnTop, OpPlaceInside, OpClose, OpRelease}

// Ops returns every known operation.
func Ops() []Op {
	out := make([]Op, len(ops))
	copy(out, ops)
	return out
}

// ParseOp normalizes s and reports whether it names a known operation. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseOp(s string) (Op, bool) {
	op := Op(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ops {
		if op == known {
			return op, true
		}
	}
	return op, false
}

// RequiredArgs returns the arguments a step of this operation must carry.
func (op Op) RequiredArgs() []string {
	switch op {
	case OpNavigateTo, OpGrasp, OpOpen, OpClose:
		return []string{ArgTarget}
	case OpPlaceOnTop, OpPlaceInside:
		return []string{ArgObject, ArgReceptacle}
	case OpRelease:
		return nil
	default:
		return nil
	}
}

func (op Op) String() string {
	return string(op)
}
