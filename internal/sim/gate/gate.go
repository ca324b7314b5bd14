package gate

import (
	"time"

	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/tilt"
	"waterchores.dev/internal/sim/vessel"
)

type State int

const (
	Idle State = iota
	Armed
	Fired
)

func (s State) String() string {
	switch s {
	case Armed:
		return "ARMED"
	case Fired:
		return "FIRED"
	default:
		return "IDLE"
	}
}

// Executor is the owner's task. It reports whether the task actually ran;
// only executed tasks count as a fire.
type Executor interface {
	Execute(fr tickctx.Frame, v *vessel.Vessel) bool
}

type ExecutorFunc func(fr tickctx.Frame, v *vessel.Vessel) bool

func (f ExecutorFunc) Execute(fr tickctx.Frame, v *vessel.Vessel) bool { return f(fr, v) }

// Volume is an overlap volume the session routes enter/stay/exit events to.
// A Gate is one; a site that tracks several vessels at once provides its own.
type Volume interface {
	Enter(fr tickctx.Frame, v *vessel.Vessel) bool
	Stay(fr tickctx.Frame, v *vessel.Vessel) bool
	Exit(fr tickctx.Frame, v *vessel.Vessel)
}

// Hooks let the owner react to target changes (registry membership, effects).
type Hooks struct {
	OnArm  func(fr tickctx.Frame, v *vessel.Vessel)
	OnExit func(fr tickctx.Frame, v *vessel.Vessel)
}

// Gate is the trigger-volume state machine shared by task sites and
// vessel-to-vessel transfer: Idle -> Armed -> Fired, back to Idle on exit.
type Gate struct {
	id      string
	profile Profile
	exec    Executor
	hooks   Hooks

	state    State
	target   *vessel.Vessel
	detector *tilt.Detector

	completed      bool
	firedThisVisit bool
	hasFired       bool
	lastFire       time.Duration
	fires          int
}

// New validates the profile. An invalid gate is never constructed; callers
// log the ConfigurationError and leave the component out of the scene.
func New(id string, p Profile, exec Executor, hooks Hooks) (*Gate, error) {
	if id == "" {
		return nil, diag.Configf("gate", "no overlap volume assigned")
	}
	if exec == nil {
		return nil, diag.Configf(id, "no executor")
	}
	if err := p.Validate(id); err != nil {
		return nil, err
	}
	g := &Gate{id: id, profile: p, exec: exec, hooks: hooks}
	if p.Condition == TiltDetection && !p.PourDriven {
		g.detector = tilt.NewDetector(p.TiltThreshold, p.TiltCooldown)
	}
	return g, nil
}

func (g *Gate) ID() string             { return g.id }
func (g *Gate) Profile() Profile       { return g.profile }
func (g *Gate) State() State           { return g.state }
func (g *Gate) Target() *vessel.Vessel { return g.target }
func (g *Gate) Completed() bool        { return g.completed }
func (g *Gate) Fires() int             { return g.fires }

// CanReceive is false once a one-shot gate completed.
func (g *Gate) CanReceive() bool { return !(g.profile.OneShot && g.completed) }

// Restore marks a one-shot gate completed (snapshot import).
func (g *Gate) Restore(completed bool) { g.completed = completed }

// Reset forgets completion and cooldown for a new session. A vessel still
// inside the volume stays the target.
func (g *Gate) Reset() {
	g.completed = false
	g.hasFired = false
	g.firedThisVisit = false
	g.lastFire = 0
	g.fires = 0
	g.state = Idle
	if g.target != nil {
		g.state = Armed
	}
	if g.detector != nil {
		g.detector.Reset()
	}
}

// Enter handles a vessel entering the volume and reports whether the gate
// fired (collision condition only).
func (g *Gate) Enter(fr tickctx.Frame, v *vessel.Vessel) bool {
	if g.target != nil || !g.profile.Eligible(v) {
		return false
	}
	g.target = v
	g.state = Armed
	g.firedThisVisit = false
	if g.detector != nil {
		g.detector.Prime(v.Pose)
	}
	if g.hooks.OnArm != nil {
		g.hooks.OnArm(fr, v)
	}
	if g.profile.Condition == CollisionDetection {
		return g.fire(fr)
	}
	return false
}

// Stay re-evaluates a vessel that is still inside the volume; one that
// became eligible arms the gate as if it had just entered. A collision gate
// that could not fire on enter retries once per visit.
func (g *Gate) Stay(fr tickctx.Frame, v *vessel.Vessel) bool {
	if g.target == nil {
		return g.Enter(fr, v)
	}
	if g.target != v || !g.profile.Eligible(v) {
		return false
	}
	if g.hooks.OnArm != nil {
		g.hooks.OnArm(fr, v)
	}
	if g.profile.Condition == CollisionDetection && !g.firedThisVisit {
		return g.fire(fr)
	}
	return false
}

// Exit clears the target. The per-visit flag resets; the one-shot
// completion does not.
func (g *Gate) Exit(fr tickctx.Frame, v *vessel.Vessel) {
	if v == nil || g.target != v {
		return
	}
	if g.hooks.OnExit != nil {
		g.hooks.OnExit(fr, v)
	}
	g.target = nil
	g.state = Idle
	g.firedThisVisit = false
	if g.detector != nil {
		g.detector.Reset()
	}
}

// Tick evaluates the polled conditions (button edge, gate-owned tilt).
func (g *Gate) Tick(fr tickctx.Frame) bool {
	if g.target == nil {
		return false
	}
	switch g.profile.Condition {
	case ButtonPress:
		if fr.Pressed(g.profile.Button) {
			return g.fire(fr)
		}
	case TiltDetection:
		if g.detector != nil && g.detector.Update(fr.Now, g.target.Pose) {
			return g.fire(fr)
		}
	}
	return false
}

// Offer delivers a pour from the target's registry to a pour-driven gate.
func (g *Gate) Offer(fr tickctx.Frame, v *vessel.Vessel) bool {
	if !g.profile.PourDriven || v == nil || g.target != v {
		return false
	}
	return g.fire(fr)
}

func (g *Gate) Ready(now time.Duration) bool {
	if g.target == nil || !g.CanReceive() {
		return false
	}
	if g.profile.OncePerVisit && g.firedThisVisit {
		return false
	}
	if g.hasFired && now-g.lastFire < g.profile.Cooldown {
		return false
	}
	return g.profile.Eligible(g.target)
}

func (g *Gate) fire(fr tickctx.Frame) bool {
	if !g.Ready(fr.Now) {
		return false
	}
	if !g.exec.Execute(fr, g.target) {
		return false
	}
	g.hasFired = true
	g.lastFire = fr.Now
	g.firedThisVisit = true
	g.state = Fired
	g.fires++
	if g.profile.OneShot {
		g.completed = true
	}
	return true
}
