package inject

import (
	"context"

	"github.com/makolon/og-vlm/executor"
)

// Executor is an injected executor.
type Executor struct {
	executor.Executor
	NavigateToFunc  func(ctx context.Context, target string) (executor.Result, error)
	GraspFunc       func(ctx context.Context, target string) (executor.Result, error)
	PlaceOnTopFunc  func(ctx context.Context, object, receptacle string) (executor.Result, error)
	PlaceInsideFunc func(ctx context.Context, object, receptacle string) (executor.Result, error)
	OpenFunc        func(ctx context.Context, target string) (executor.Result, error)
	CloseFunc       func(ctx context.Context, target string) (executor.Result, error)
	ReleaseFunc     func(ctx context.Context) (executor.Result, error)
}

// NavigateTo calls the injected NavigateTo or the real version.
func (e *Executor) NavigateTo(ctx context.Context, target string) (executor.Result, error) {
	if e.NavigateToFunc == nil {
		return e.Executor.NavigateTo(ctx, target)
	}
	return e.NavigateToFunc(ctx, target)
}

// Grasp calls the injected Grasp or the real version.
func (e *Executor) Grasp(ctx context.Context, target string) (executor.Result, error) {
	if e.GraspFunc == nil {
		return e.Executor.Grasp(ctx, target)
	}
	return e.GraspFunc(ctx, target)
}

// PlaceOnTop calls the injected PlaceOnTop or the real version.
func (e *Executor) PlaceOnTop(ctx context.Context, object, receptacle string) (executor.Result, error) {
	if e.PlaceOnTopFunc == nil {
		return e.Executor.PlaceOnTop(ctx, object, receptacle)
	}
	return e.PlaceOnTopFunc(ctx, object, receptacle)
}

// PlaceInside calls the injected PlaceInside or the real version.
func (e *Executor) PlaceInside(ctx context.Context, object, receptacle string) (executor.Result, error) {
	if e.PlaceInsideFunc == nil {
		return e.Executor.PlaceInside(ctx, object, receptacle)
	}
	return e.PlaceInsideFunc(ctx, object, receptacle)
}

// Open calls the injected Open or the real version.
func (e *Executor) Open(ctx context.Context, target string) (executor.Result, error) {
	if e.OpenFunc == nil {
		return e.Executor.Open(ctx, target)
	}
	return e.OpenFunc(ctx, target)
}

// Close calls the injected Close or the real version.
func (e *Executor) Close(ctx context.Context, target string) (executor.Result, error) {
	if e.CloseFunc == nil {
		return e.Executor.Close(ctx, target)
	}
	return e.CloseFunc(ctx, target)
}

// Release calls the injected Release or the real version.
func (e *Executor) Release(ctx context.Context) (executor.Result, error) {
	if e.ReleaseFunc == nil {
		return e.Executor.Release(ctx)
	}
	return e.ReleaseFunc(ctx)
}
