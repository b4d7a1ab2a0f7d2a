package executor

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/plan"
)

// ErrUnhandled is returned by Dispatch for a step whose op is not a known operation. Callers log
// and move on to the next step.
var ErrUnhandled = errors.New("unhandled plan step")

// Dispatch runs one plan step on ex, passing only the arguments relevant to its op.
//
// Every executable step kind in package plan must have a case here; TestDispatchCoversEveryOp
// fails when one is added without one.
func Dispatch(ctx context.Context, ex Executor, step plan.Step) (Result, error) {
	switch s := step.(type) {
	case plan.NavigateTo:
		return ex.NavigateTo(ctx, s.Target)
	case plan.Grasp:
		return ex.Grasp(ctx, s.Target)
	case plan.PlaceOnTop:
		return ex.PlaceOnTop(ctx, s.Object, s.Receptacle)
	case plan.PlaceInside:
		return ex.PlaceInside(ctx, s.Object, s.Receptacle)
	case plan.Open:
		return ex.Open(ctx, s.Target)
	case plan.Close:
		return ex.Close(ctx, s.Target)
	case plan.Release:
		return ex.Release(ctx)
	case plan.Malformed:
		return Failure(s.Op(), "missing required argument: "+strings.Join(s.Missing, ", ")), nil
	case plan.Unknown:
		return Result{}, errors.Wrapf(ErrUnhandled, "unknown op %q", s.Raw.Op)
	default:
		return Result{}, errors.Wrapf(ErrUnhandled, "unsupported step %T", step)
	}
}
