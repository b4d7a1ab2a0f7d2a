// Package bridge connects to a simulation engine running in another process. The engine is served
// as a generic gRPC service and every Environment call is one DoCommand round trip carrying a
// "command" key plus its arguments.
package bridge

import (
	"github.com/golang/geo/r3"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/makolon/og-vlm/sim"
	"github.com/makolon/og-vlm/spatialmath"
)

// Command names understood by the engine.
const (
	CommandLoad             = "load"
	CommandReset            = "reset"
	CommandStep             = "step"
	CommandObjects          = "objects"
	CommandAgentPosition    = "agent_position"
	CommandSetPosition      = "set_position"
	CommandGoalFraction     = "goal_fraction"
	CommandSnapshot         = "snapshot"
	CommandCapabilities     = "capabilities"
	CommandPrimitiveActions = "primitive_actions"
	CommandClose            = "close"
)

const (
	keyCommand = "command"
	keyError   = "error"
)

// DefaultResourceName is the name the engine's generic service is addressed by.
const DefaultResourceName = "simulator"

type wireAABB struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

type wireObject struct {
	Name     string    `json:"name"`
	Position []float64 `json:"position"`
	AABB     *wireAABB `json:"aabb"`
}

type objectsResponse struct {
	Objects []wireObject `json:"objects"`
}

type goalFractionResponse struct {
	Fraction float64 `json:"fraction"`
	OK       bool    `json:"ok"`
}

type snapshotResponse struct {
	OK  bool   `json:"ok"`
	PNG string `json:"png"`
}

type capabilitiesResponse struct {
	Primitives bool   `json:"primitives"`
	Reason     string `json:"reason"`
}

// decode decodes a DoCommand result into out, which must be a pointer to one of the response
// types above.
func decode(in map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

func vectorToWire(v r3.Vector) []interface{} {
	return []interface{}{v.X, v.Y, v.Z}
}

func vectorFromWire(in interface{}) (r3.Vector, error) {
	items, err := cast.ToSliceE(in)
	if err != nil {
		return r3.Vector{}, err
	}
	floats := make([]float64, 0, len(items))
	for _, item := range items {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return r3.Vector{}, err
		}
		floats = append(floats, f)
	}
	return vectorFromFloats(floats)
}

func vectorFromFloats(f []float64) (r3.Vector, error) {
	if len(f) != 3 {
		return r3.Vector{}, errors.Errorf("expected 3 coordinates, got %d", len(f))
	}
	return r3.Vector{X: f[0], Y: f[1], Z: f[2]}, nil
}

func (w wireObject) object() (sim.Object, error) {
	pos, err := vectorFromFloats(w.Position)
	if err != nil {
		return sim.Object{}, errors.Wrapf(err, "position of %s", w.Name)
	}
	obj := sim.Object{Name: w.Name, Position: pos}
	if w.AABB == nil {
		return obj, nil
	}
	lo, err := vectorFromFloats(w.AABB.Min)
	if err != nil {
		return sim.Object{}, errors.Wrapf(err, "bounding box of %s", w.Name)
	}
	hi, err := vectorFromFloats(w.AABB.Max)
	if err != nil {
		return sim.Object{}, errors.Wrapf(err, "bounding box of %s", w.Name)
	}
	box, err := spatialmath.NewAABB(lo, hi)
	if err != nil {
		return sim.Object{}, errors.Wrapf(err, "bounding box of %s", w.Name)
	}
	obj.AABB = &box
	return obj, nil
}

func objectToWire(o sim.Object) map[string]interface{} {
	out := map[string]interface{}{
		"name":     o.Name,
		"position": vectorToWire(o.Position),
	}
	if o.AABB != nil {
		out["aabb"] = map[string]interface{}{
			"min": vectorToWire(o.AABB.Min),
			"max": vectorToWire(o.AABB.Max),
		}
	}
	return out
}

func actionToWire(a sim.Action) []interface{} {
	out := make([]interface{}, 0, len(a))
	for _, v := range a {
		out = append(out, v)
	}
	return out
}

func actionFromWire(in interface{}) (sim.Action, error) {
	items, err := cast.ToSliceE(in)
	if err != nil {
		return nil, err
	}
	out := make(sim.Action, 0, len(items))
	for _, item := range items {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
