package plan

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedPlan is returned when a planning service response cannot be parsed into a plan.
var ErrMalformedPlan = errors.New("malformed plan response")

// Decode parses a planning service response. Markdown code fences and <think> blocks around the
// JSON object are tolerated, as are extra fields on steps. A missing "plan" key yields an empty
// plan.
func Decode(raw []byte) (Plan, error) {
	text := StripFences(string(raw))
	if text == "" {
		return Plan{}, errors.Wrap(ErrMalformedPlan, "empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	var wire struct {
		Plan []struct {
			Op         *string `json:"op"`
			Target     *string `json:"target"`
			Object     *string `json:"object"`
			Receptacle *string `json:"receptacle"`
		} `json:"plan"`
	}
	if err := dec.Decode(&wire); err != nil {
		return Plan{}, errors.Wrapf(ErrMalformedPlan, "decoding %q: %v", truncate(text, 120), err)
	}

	steps := make([]Step, 0, len(wire.Plan))
	for i, s := range wire.Plan {
		if s.Op == nil {
			return Plan{}, errors.Wrapf(ErrMalformedPlan, "step %d has no op", i)
		}
		steps = append(steps, FromWire(WireStep{
			Op:         *s.Op,
			Target:     deref(s.Target),
			Object:     deref(s.Object),
			Receptacle: deref(s.Receptacle),
		}))
	}
	return Plan{Steps: steps}, nil
}

// StripThinkBlocks removes all <think>...</think> blocks from s. Reasoning models emit these
// before or between JSON objects. An unclosed block is stripped to the end of the string.
func StripThinkBlocks(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// StripFences removes markdown code fences (```json ... ```) and <think> blocks from model output.
func StripFences(s string) string {
	s = StripThinkBlocks(strings.TrimSpace(s))
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
