package sim

import (
	"context"

	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/plan"
)

// ErrPrimitivesUnsupported is returned by environments whose engine cannot synthesize primitive
// actions.
var ErrPrimitivesUnsupported = errors.New("primitive actions unsupported")

// ErrActionRejected matches errors with which an engine declines to produce actions for an
// operation, such as an unmet precondition. Any other PrimitiveActions error is a fault.
var ErrActionRejected = errors.New("primitive action rejected")

type rejection struct{ error }

func (r *rejection) Is(target error) bool { return target == ErrActionRejected }

func (r *rejection) Unwrap() error { return r.error }

// RejectAction marks err as an engine declining an operation. Its message is unchanged.
func RejectAction(err error) error {
	if err == nil {
		return nil
	}
	return &rejection{err}
}

// PrimitiveProvider is implemented by environments that can turn a symbolic operation on resolved
// objects into a sequence of low-level actions. The sequence may be empty. Receptacle-taking
// operations receive the object first.
type PrimitiveProvider interface {
	PrimitiveActions(ctx context.Context, op plan.Op, objects ...Object) ([]Action, error)
}

// PrimitiveProber is optionally implemented by a PrimitiveProvider that can only tell at runtime
// whether its engine supports primitives.
type PrimitiveProber interface {
	ProbePrimitives(ctx context.Context) error
}
