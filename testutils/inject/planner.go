package inject

import (
	"context"

	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/planner"
)

// Planner is an injected planner.
type Planner struct {
	planner.Planner
	PlanFunc func(ctx context.Context, req planner.Request) (plan.Plan, error)
}

// Plan calls the injected Plan or the real version.
func (p *Planner) Plan(ctx context.Context, req planner.Request) (plan.Plan, error) {
	if p.PlanFunc == nil {
		return p.Planner.Plan(ctx, req)
	}
	return p.PlanFunc(ctx, req)
}
