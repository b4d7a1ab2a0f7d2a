// Package executor defines the capabilities a plan is executed with, the results they report and
// the dispatcher mapping plan steps onto them.
package executor

import (
	"context"

	"github.com/makolon/og-vlm/plan"
)

// Executor turns plan steps into actions in the simulation. A name that resolves to nothing is
// reported as a failed Result, never as an error; errors are reserved for environment faults.
//
// Executors hold no state between calls: grasp status, joint positions and poses all live in the
// simulation.
type Executor interface {
	NavigateTo(ctx context.Context, target string) (Result, error)
	Grasp(ctx context.Context, target string) (Result, error)
	PlaceOnTop(ctx context.Context, object, receptacle string) (Result, error)
	PlaceInside(ctx context.Context, object, receptacle string) (Result, error)
	Open(ctx context.Context, target string) (Result, error)
	Close(ctx context.Context, target string) (Result, error)
	Release(ctx context.Context) (Result, error)
}

// Failure reasons reported by executors.
const (
	ReasonTargetNotFound    = "target not found"
	ReasonObjectNotFound    = "object not found"
	ReasonPlacementNotFound = "object or receptacle not found"
)

// Result is the outcome of one capability call. It belongs to the caller.
type Result struct {
	Success    bool
	Op         plan.Op
	Target     string
	Object     string
	Receptacle string
	Reason     string
}

// TargetSuccess is a successful result for a single-target capability.
func TargetSuccess(op plan.Op, target string) Result {
	return Result{Success: true, Op: op, Target: target}
}

// PlacementSuccess is a successful result for a placement capability.
func PlacementSuccess(op plan.Op, object, receptacle string) Result {
	return Result{Success: true, Op: op, Object: object, Receptacle: receptacle}
}

// Failure is a failed result with the given reason.
func Failure(op plan.Op, reason string) Result {
	return Result{Op: op, Reason: reason}
}

// Info renders the result as a mapping: the op, plus the identifiers on success or the reason on
// failure.
func (r Result) Info() map[string]interface{} {
	info := map[string]interface{}{"op": string(r.Op)}
	if !r.Success {
		info["reason"] = r.Reason
		return info
	}
	if r.Target != "" {
		info[plan.ArgTarget] = r.Target
	}
	if r.Object != "" {
		info[plan.ArgObject] = r.Object
	}
	if r.Receptacle != "" {
		info[plan.ArgReceptacle] = r.Receptacle
	}
	return info
}
