package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// MaxPromptCatalog bounds the number of names included in the prompt.
const MaxPromptCatalog = 40

// SystemPrompt instructs the planning service on the plan format.
const SystemPrompt = `You are a task planner for BEHAVIOR (OmniGibson) household activities.
You will receive: (a) the activity name, (b) a list of visible objects/receptacles, and (c) optional constraints.
Output a STRICT JSON with a list of high-level steps from the following schema.

Schema (JSON):
{
  "plan": [
    {"op": "NAVIGATE_TO", "target": "<object_or_area_name>"},
    {"op": "OPEN", "target": "<articulated_object_name>"},
    {"op": "GRASP", "target": "<object_name>"},
    {"op": "PLACE_ON_TOP", "object": "<object_name>", "receptacle": "<surface_name>"},
    {"op": "PLACE_INSIDE", "object": "<object_name>", "receptacle": "<container_name>"},
    {"op": "CLOSE", "target": "<articulated_object_name>"},
    {"op": "RELEASE"}
  ]
}

Rules:
- Use only object / receptacle names that appear in the provided list.
- Prefer minimal, feasible sequences (no loops).
- If a door/drawer must be opened to place inside, include OPEN before PLACE_INSIDE, and CLOSE after.
- If already next to the target, you may omit NAVIGATE_TO.
- NEVER include commentary; return only valid JSON.
`

const userPromptFormat = `Activity: %s
Objects & Receptacles (subset): %s
Constraints / Notes: %s

Return JSON only.`

// ImageCaption accompanies the snapshot when one is attached.
const ImageCaption = "Latest RGB observation."

// PromptCatalog returns the names shown in the prompt: deduplicated, sorted and truncated.
func PromptCatalog(catalog []string) []string {
	names := lo.Uniq(catalog)
	sort.Strings(names)
	if len(names) > MaxPromptCatalog {
		names = names[:MaxPromptCatalog]
	}
	return names
}

// UserPrompt renders the per-episode part of the prompt.
func UserPrompt(req Request) string {
	notes := req.Notes
	if notes == "" {
		notes = "None"
	}
	return fmt.Sprintf(userPromptFormat, req.Activity, strings.Join(PromptCatalog(req.Catalog), ", "), notes)
}
