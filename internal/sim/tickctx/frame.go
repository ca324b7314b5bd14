package tickctx

import (
	"time"

	"waterchores.dev/internal/sim/vessel"
)

// Frame is the per-tick context handed to every component during a step.
type Frame struct {
	Tick  uint64
	Now   time.Duration
	Guard *vessel.Guard

	// Buttons pressed down this tick (edges, not held state).
	Buttons map[string]bool
}

func (f Frame) Pressed(button string) bool {
	if button == "" || f.Buttons == nil {
		return false
	}
	return f.Buttons[button]
}
