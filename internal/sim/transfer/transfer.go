// Package transfer moves water between two vessels that meet. The transfer is
// attached to one vessel and fires when another vessel inside its volume is
// tilted (or, if configured, on a button press).
package transfer

import (
	"log"
	"math"
	"time"

	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/effects"
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

const (
	DefaultAmount   = 5.0
	DefaultDuration = time.Second
)

type Direction string

const (
	// Pull fills the owning vessel from the other one.
	Pull Direction = "PULL"
	// Push pours the owning vessel into the other one.
	Push Direction = "PUSH"
)

type Config struct {
	ID            string
	Amount        float64
	Duration      *time.Duration
	Condition     gate.Condition
	Button        string
	TiltThreshold float64
	TiltCooldown  time.Duration
}

// Result describes one executed transfer.
type Result struct {
	Tick      uint64    `json:"tick"`
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    float64   `json:"amount"`
	Quality   float64   `json:"quality"`
}

type Env struct {
	Effects   effects.EffectSink
	Scheduler *effects.Scheduler
	Logger    *log.Logger
	// OnTransfer observes executed transfers.
	OnTransfer func(Result)
}

type Transfer struct {
	id       string
	self     *vessel.Vessel
	amount   float64
	duration time.Duration
	env      Env
	gate     *gate.Gate

	running bool
	moved   float64
	count   int
}

func New(cfg Config, self *vessel.Vessel, env Env) (*Transfer, error) {
	if self == nil {
		return nil, diag.Configf(cfg.ID, "transfer without a vessel")
	}
	if env.Effects == nil {
		env.Effects = effects.Nop{}
	}
	if env.Scheduler == nil {
		env.Scheduler = effects.NewScheduler()
	}
	t := &Transfer{
		id:       cfg.ID,
		self:     self,
		amount:   cfg.Amount,
		duration: DefaultDuration,
		env:      env,
	}
	if t.amount <= 0 {
		t.amount = DefaultAmount
	}
	if cfg.Duration != nil {
		t.duration = *cfg.Duration
	}
	p := gate.Profile{
		Fill:          gate.RequireAny,
		Condition:     gate.TiltDetection,
		Button:        cfg.Button,
		TiltThreshold: cfg.TiltThreshold,
		TiltCooldown:  cfg.TiltCooldown,
		Accept:        func(o *vessel.Vessel) bool { return o != self },
	}
	if cfg.Condition != "" {
		p.Condition = cfg.Condition
	}
	if p.TiltThreshold <= 0 {
		p.TiltThreshold = 45
	}
	g, err := gate.New(cfg.ID, p, t, gate.Hooks{OnExit: t.onExit})
	if err != nil {
		return nil, err
	}
	t.gate = g
	return t, nil
}

func (t *Transfer) ID() string             { return t.id }
func (t *Transfer) Vessel() *vessel.Vessel { return t.self }
func (t *Transfer) Gate() *gate.Gate       { return t.gate }
func (t *Transfer) Running() bool          { return t.running }
func (t *Transfer) Moved() float64         { return t.moved }
func (t *Transfer) Count() int             { return t.count }

// Resolve picks the direction for a meeting with other. Filling the owning
// vessel takes priority over emptying it.
func (t *Transfer) Resolve(other *vessel.Vessel) (from, to *vessel.Vessel, dir Direction, ok bool) {
	switch {
	case !t.self.IsFull() && other.HasWater():
		return other, t.self, Pull, true
	case t.self.HasWater() && !other.IsFull():
		return t.self, other, Push, true
	}
	return nil, nil, "", false
}

func (t *Transfer) Execute(fr tickctx.Frame, other *vessel.Vessel) bool {
	if t.running || other == nil || other == t.self {
		return false
	}
	from, to, dir, ok := t.Resolve(other)
	if !ok {
		return false
	}
	n := math.Min(math.Min(t.amount, from.Amount()), to.FreeSpace())
	if n <= 0 || !fr.Guard.Claim(t.id, from, to) {
		return false
	}
	q := from.Quality()
	accepted := to.Fill(n, q)
	from.Drain(accepted)
	if accepted <= 0 {
		return false
	}
	t.moved += accepted
	t.count++
	res := Result{Tick: fr.Tick, ID: t.id, Direction: dir, From: from.ID, To: to.ID, Amount: accepted, Quality: q}
	if t.env.Logger != nil {
		t.env.Logger.Printf("%s: %s %.1f from %s to %s", t.id, dir, accepted, from.ID, to.ID)
	}
	if t.env.OnTransfer != nil {
		t.env.OnTransfer(res)
	}
	t.start(fr.Now)
	return true
}

func (t *Transfer) start(now time.Duration) {
	if t.duration == 0 {
		return
	}
	t.running = true
	t.env.Effects.StartEffect(t.id, t.duration)
	if t.duration > 0 {
		t.env.Scheduler.After(now, t.duration, t.id, t.stop)
	}
}

func (t *Transfer) stop() {
	if !t.running {
		return
	}
	t.running = false
	t.env.Scheduler.Cancel(t.id)
	t.env.Effects.StopEffect(t.id)
}

// An open-ended stream stops when the other vessel leaves.
func (t *Transfer) onExit(tickctx.Frame, *vessel.Vessel) {
	if t.duration < 0 {
		t.stop()
	}
}

// Cancel ends a running transfer effect (session reset).
func (t *Transfer) Cancel() { t.stop() }
