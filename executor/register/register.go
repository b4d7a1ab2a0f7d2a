// Package register registers all execution strategies
package register

import (
	// for executors.
	_ "github.com/makolon/og-vlm/executor/primitive"
	_ "github.com/makolon/og-vlm/executor/teleport"
)
