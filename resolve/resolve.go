// Package resolve maps free-text object names onto objects of the current scene.
package resolve

import (
	"math"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/makolon/og-vlm/sim"
	"github.com/makolon/og-vlm/spatialmath"
)

// Strategy picks one object among those whose name matches query. ok is false when nothing
// matches; that is an expected outcome, not a fault. from is the reference point for strategies
// that rank by distance and may be nil.
type Strategy interface {
	Resolve(query string, candidates []sim.Object, from *r3.Vector) (obj sim.Object, ok bool)
}

// Matches reports whether candidate matches query: the lower-cased query appears anywhere in the
// lower-cased candidate name.
func Matches(query, candidate string) bool {
	return strings.Contains(strings.ToLower(candidate), strings.ToLower(query))
}

// Filter returns the candidates matching query, in catalog order.
func Filter(query string, candidates []sim.Object) []sim.Object {
	var out []sim.Object
	for _, c := range candidates {
		if Matches(query, c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// FirstMatch returns the first matching candidate in catalog order.
type FirstMatch struct{}

// Resolve implements Strategy.
func (FirstMatch) Resolve(query string, candidates []sim.Object, _ *r3.Vector) (sim.Object, bool) {
	matches := Filter(query, candidates)
	if len(matches) == 0 {
		return sim.Object{}, false
	}
	return matches[0], true
}

// NearestMatch returns the matching candidate closest to the reference point. Ties keep catalog
// order; without a reference point it behaves like FirstMatch.
type NearestMatch struct{}

// Resolve implements Strategy.
func (NearestMatch) Resolve(query string, candidates []sim.Object, from *r3.Vector) (sim.Object, bool) {
	if from == nil {
		return FirstMatch{}.Resolve(query, candidates, nil)
	}
	var (
		best     sim.Object
		found    bool
		bestDist = math.Inf(1)
	)
	for _, c := range Filter(query, candidates) {
		if d := spatialmath.Distance(c.Position, *from); d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}
