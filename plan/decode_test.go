package plan

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestDecode(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		p, err := Decode([]byte(`{"plan":[{"op":"GRASP","target":"apple_1"},{"op":"PLACE_ON_TOP","object":"apple_1","receptacle":"basket_1"}]}`))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Steps, test.ShouldResemble, []Step{
			Grasp{Target: "apple_1"},
			PlaceOnTop{Object: "apple_1", Receptacle: "basket_1"},
		})
	})

	t.Run("fenced and with reasoning", func(t *testing.T) {
		raw := "<think>the apple goes in the basket</think>\n```json\n{\"plan\":[{\"op\":\"release\"}]}\n```"
		p, err := Decode([]byte(raw))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Steps, test.ShouldResemble, []Step{Release{}})
	})

	t.Run("unknown ops and extra fields are kept", func(t *testing.T) {
		p, err := Decode([]byte(`{"plan":[{"op":"TELEPORT_ALL","why":"fast"},{"op":"OPEN","target":"fridge","speed":3}],"notes":"x"}`))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Len(), test.ShouldEqual, 2)
		_, ok := p.Steps[0].(Unknown)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, p.Steps[1], test.ShouldResemble, Open{Target: "fridge"})
	})

	t.Run("missing plan key is an empty plan", func(t *testing.T) {
		p, err := Decode([]byte(`{}`))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Len(), test.ShouldEqual, 0)
	})

	for _, tc := range []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"not json", "I would grasp the apple"},
		{"top-level array", `[{"op":"GRASP","target":"apple"}]`},
		{"step without op", `{"plan":[{"target":"apple"}]}`},
		{"op of the wrong type", `{"plan":[{"op":3}]}`},
		{"argument of the wrong type", `{"plan":[{"op":"GRASP","target":["apple"]}]}`},
	} {
		t.Run("malformed "+tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrMalformedPlan), test.ShouldBeTrue)
		})
	}
}

func TestStripFences(t *testing.T) {
	test.That(t, StripFences("```json\n{\"a\":1}\n```"), test.ShouldEqual, `{"a":1}`)
	test.That(t, StripFences("```\n{\"a\":1}```"), test.ShouldEqual, `{"a":1}`)
	test.That(t, StripFences(`  {"a":1}  `), test.ShouldEqual, `{"a":1}`)
	test.That(t, StripThinkBlocks("<think>a</think>x<think>b</think>y"), test.ShouldEqual, "xy")
	test.That(t, StripThinkBlocks("x<think>never closed"), test.ShouldEqual, "x")
}
