package fake

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Body is an object of a fake scene. Position is the center of its bounding box; a zero Size
// means the engine reports no bounding box for it.
type Body struct {
	Name     string
	Position r3.Vector
	Size     r3.Vector
	Openable bool
	Open     bool
}

// GoalKind is the kind of a goal predicate.
type GoalKind string

// Goal predicate kinds.
const (
	GoalOnTop  GoalKind = "ontop"
	GoalInside GoalKind = "inside"
	GoalOpen   GoalKind = "open"
	GoalClosed GoalKind = "closed"
)

// Goal is one predicate of an activity's goal condition. Receptacle is empty for GoalOpen and
// GoalClosed.
type Goal struct {
	Kind       GoalKind
	Object     string
	Receptacle string
}

// Scene is the initial state of an activity.
type Scene struct {
	Bodies []Body
	Agent  r3.Vector
	Goals  []Goal
}

// PlacementJitter bounds how far, along each horizontal axis, Reset shifts a movable object from
// its scene position.
const PlacementJitter = 0.05

// Movable returns the names of the objects goals place on top of or inside something.
// Receptacles and the things they rest on keep their scene positions.
func (s Scene) Movable() map[string]bool {
	movable := map[string]bool{}
	for _, g := range s.Goals {
		if g.Kind == GoalOnTop || g.Kind == GoalInside {
			movable[g.Object] = true
		}
	}
	return movable
}

var (
	tableTop   = Body{Name: "table_1", Position: r3.Vector{X: 2, Y: 0, Z: 0.4}, Size: r3.Vector{X: 1.2, Y: 0.8, Z: 0.8}}
	counterTop = Body{Name: "counter_1", Position: r3.Vector{X: -2, Y: 0, Z: 0.45}, Size: r3.Vector{X: 1, Y: 0.6, Z: 0.9}}
)

var scenes = map[string]func() Scene{
	"setting_the_table": func() Scene {
		return Scene{
			Bodies: []Body{
				tableTop,
				counterTop,
				{Name: "plate_1", Position: r3.Vector{X: -2, Y: 0.1, Z: 0.91}, Size: r3.Vector{X: 0.25, Y: 0.25, Z: 0.02}},
				{Name: "cup_1", Position: r3.Vector{X: -2.2, Y: -0.1, Z: 0.95}, Size: r3.Vector{X: 0.08, Y: 0.08, Z: 0.1}},
			},
			Goals: []Goal{
				{Kind: GoalOnTop, Object: "plate_1", Receptacle: "table_1"},
				{Kind: GoalOnTop, Object: "cup_1", Receptacle: "table_1"},
			},
		}
	},
	"stocking_the_fridge": func() Scene {
		return Scene{
			Bodies: []Body{
				counterTop,
				{Name: "fridge_1", Position: r3.Vector{X: 0, Y: 3, Z: 0.9}, Size: r3.Vector{X: 0.8, Y: 0.7, Z: 1.8}, Openable: true},
				{Name: "apple_1", Position: r3.Vector{X: -2, Y: 0, Z: 0.94}, Size: r3.Vector{X: 0.08, Y: 0.08, Z: 0.08}},
				{Name: "milk_1", Position: r3.Vector{X: -1.8, Y: 0.2, Z: 1}, Size: r3.Vector{X: 0.07, Y: 0.07, Z: 0.2}},
			},
			Goals: []Goal{
				{Kind: GoalInside, Object: "apple_1", Receptacle: "fridge_1"},
				{Kind: GoalInside, Object: "milk_1", Receptacle: "fridge_1"},
				{Kind: GoalClosed, Object: "fridge_1"},
			},
		}
	},
	"collecting_apples": func() Scene {
		return Scene{
			Bodies: []Body{
				{Name: "basket_1", Position: r3.Vector{X: 1, Y: -2, Z: 0.15}, Size: r3.Vector{X: 0.4, Y: 0.4, Z: 0.3}},
				{Name: "red_apple", Position: r3.Vector{X: 3, Y: -1, Z: 0.04}, Size: r3.Vector{X: 0.08, Y: 0.08, Z: 0.08}},
				{Name: "green_apple", Position: r3.Vector{X: -1, Y: -3, Z: 0.04}, Size: r3.Vector{X: 0.08, Y: 0.08, Z: 0.08}},
				{Name: "shelf_1", Position: r3.Vector{X: 0, Y: -4, Z: 1}},
			},
			Goals: []Goal{
				{Kind: GoalInside, Object: "red_apple", Receptacle: "basket_1"},
				{Kind: GoalInside, Object: "green_apple", Receptacle: "basket_1"},
			},
		}
	},
}

// Activities returns the names of the built-in activities, sorted.
func Activities() []string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupScene returns a fresh copy of a built-in activity's scene.
func LookupScene(activity string) (Scene, error) {
	build, ok := scenes[activity]
	if !ok {
		return Scene{}, errors.Errorf("unknown activity %q (have %v)", activity, Activities())
	}
	return build(), nil
}
