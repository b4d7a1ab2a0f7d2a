package planner

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/makolon/og-vlm/plan"
)

type paced struct {
	Planner
	limiter *rate.Limiter
}

// Paced returns a planner that sends at most perMinute requests per minute to p. The first request
// is never delayed.
func Paced(p Planner, perMinute float64) Planner {
	return &paced{Planner: p, limiter: rate.NewLimiter(rate.Limit(perMinute/60), 1)}
}

func (p *paced) Plan(ctx context.Context, req Request) (plan.Plan, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return plan.Plan{}, errors.Wrap(err, "waiting for a planning slot")
	}
	return p.Planner.Plan(ctx, req)
}
