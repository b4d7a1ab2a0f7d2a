// Package register registers all planning providers
package register

import (
	// for planners.
	_ "github.com/makolon/og-vlm/planner/gemini"
	_ "github.com/makolon/og-vlm/planner/openai"
)
