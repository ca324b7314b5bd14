// Package sites implements the task locations of a scene: the tap that fills
// vessels and the field, drinking point, laundry and disposal zone that
// consume them. Each site owns a gate and records its task in the ledger.
package sites

import (
	"fmt"
	"log"
	"strings"
	"time"

	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/effects"
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/receiver"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

type Kind string

const (
	KindTap      Kind = "TAP"
	KindField    Kind = "FIELD"
	KindDrink    Kind = "DRINKING_POINT"
	KindLaundry  Kind = "LAUNDRY"
	KindDisposal Kind = "DISPOSAL"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindTap, KindField, KindDrink, KindLaundry, KindDisposal:
		return k, nil
	}
	return "", fmt.Errorf("unknown site kind %q", s)
}

// Env is what a site needs from the session it lives in.
type Env struct {
	Ledger    *ledger.Ledger
	Visual    effects.VisualSink
	Effects   effects.EffectSink
	Scheduler *effects.Scheduler
	// Registry returns the pour registry of a vessel, or nil.
	Registry func(v *vessel.Vessel) *receiver.Registry
	Logger   *log.Logger
}

func (e *Env) normalize() {
	if e.Visual == nil {
		e.Visual = effects.Nop{}
	}
	if e.Effects == nil {
		e.Effects = effects.Nop{}
	}
	if e.Scheduler == nil {
		e.Scheduler = effects.NewScheduler()
	}
}

func (e *Env) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Config is the per-site data loaded from the scene file. Zero values fall
// back to the defaults of the site kind.
type Config struct {
	ID   string
	Kind Kind

	Condition     gate.Condition
	Button        string
	Cooldown      *time.Duration
	OneShot       *bool
	TiltThreshold float64

	StaminaCost     *float64
	QualityDecrease *float64

	// Drinking point.
	SafeThreshold float64
	StaminaGain   *float64
	StaminaLoss   *float64

	// Laundry.
	CleanAmount float64
	DirtyAmount float64

	// Tap.
	WaterQuality *float64
	FlowDuration *time.Duration
	StopOnExit   bool
}

// Site is the common surface the session drives.
type Site interface {
	ID() string
	Kind() Kind
	Gate() *gate.Gate
	// Volume receives the overlap events of the site's trigger volume.
	Volume() gate.Volume
	Remove()
	Reset()
	Restore(completed bool)
}

// New builds the site described by cfg. A ConfigurationError means the site
// must be left out of the scene.
func New(cfg Config, env Env) (Site, error) {
	env.normalize()
	if env.Ledger == nil {
		return nil, diag.Configf(cfg.ID, "no ledger")
	}
	switch cfg.Kind {
	case KindTap:
		return NewTap(cfg, env)
	case KindField:
		return NewField(cfg, env)
	case KindDrink:
		return NewDrinkingPoint(cfg, env)
	case KindLaundry:
		return NewLaundry(cfg, env)
	case KindDisposal:
		return NewDisposalZone(cfg, env)
	}
	return nil, diag.Configf(cfg.ID, "unknown site kind %q", cfg.Kind)
}

type offer struct {
	amount  float64
	quality float64
}

// base carries the gate wiring shared by every site. Pour-driven sites sit in
// the target vessel's registry while armed; the others drain the vessel
// themselves when the gate fires.
type base struct {
	id      string
	kind    Kind
	env     Env
	gate    *gate.Gate
	removed bool

	reg     *receiver.Registry
	pending *offer
	reached bool
}

func (b *base) ID() string       { return b.id }
func (b *base) Kind() Kind       { return b.kind }
func (b *base) Gate() *gate.Gate { return b.gate }

func (b *base) Volume() gate.Volume { return b.gate }

// Remove takes the site out of the scene; registries drop it on their next
// notification.
func (b *base) Remove() {
	b.removed = true
	b.reg = nil
}

func (b *base) init(id string, kind Kind, env Env, p gate.Profile, exec gate.Executor) error {
	b.id, b.kind, b.env = id, kind, env
	g, err := gate.New(id, p, exec, gate.Hooks{OnArm: b.onArm, OnExit: b.onExit})
	if err != nil {
		return err
	}
	b.gate = g
	env.Visual.SetSiteState(id, effects.SiteBefore)
	return nil
}

func (b *base) onArm(_ tickctx.Frame, v *vessel.Vessel) {
	if b.removed || !b.gate.Profile().PourDriven || b.env.Registry == nil {
		return
	}
	if reg := b.env.Registry(v); reg != nil && b.CanReceiveWater() {
		reg.Register(b)
		b.reg = reg
	}
}

func (b *base) onExit(_ tickctx.Frame, _ *vessel.Vessel) {
	if b.reg != nil {
		b.reg.Unregister(b)
		b.reg = nil
	}
}

func (b *base) ReceiverID() string { return b.id }
func (b *base) Valid() bool        { return !b.removed }

func (b *base) CanReceiveWater() bool {
	return !b.removed && b.gate != nil && b.gate.CanReceive()
}

func (b *base) ReceiveWater(fr tickctx.Frame, v *vessel.Vessel, amount, quality float64) bool {
	b.pending = &offer{amount: amount, quality: quality}
	defer func() { b.pending = nil }()
	return b.gate.Offer(fr, v)
}

// take returns the water the task consumes. For a pour it is the captured
// pour (the registry drains afterwards); otherwise the site drains the vessel
// itself, provided the vessel was not already mutated this tick.
func (b *base) take(fr tickctx.Frame, v *vessel.Vessel) (amount, quality float64, ok bool) {
	if b.pending != nil {
		return b.pending.amount, b.pending.quality, b.pending.amount > 0
	}
	if !v.HasWater() || !fr.Guard.Claim(b.id, v) {
		return 0, 0, false
	}
	quality = v.Quality()
	return v.EmptyAll(), quality, true
}

func (b *base) source(fr tickctx.Frame, v *vessel.Vessel) ledger.Source {
	return ledger.Source{Tick: fr.Tick, SiteID: b.id, Vessel: v.ID}
}

// completed switches the site visual the first time its task runs.
func (b *base) completed() {
	if b.reached {
		return
	}
	b.reached = true
	b.env.Visual.SetSiteState(b.id, effects.SiteAfter)
}

func (b *base) Reset() {
	b.gate.Reset()
	b.reached = false
	b.env.Visual.SetSiteState(b.id, effects.SiteBefore)
}

// Restore re-applies persisted completion without emitting entries.
func (b *base) Restore(completed bool) {
	b.gate.Restore(completed)
	if completed && !b.reached {
		b.reached = true
		b.env.Visual.SetSiteState(b.id, effects.SiteAfter)
	}
}

func profileFor(cfg Config, p gate.Profile) gate.Profile {
	if cfg.Condition != "" {
		p.Condition = cfg.Condition
	}
	if cfg.Button != "" {
		p.Button = cfg.Button
	}
	if cfg.Cooldown != nil {
		p.Cooldown = *cfg.Cooldown
	}
	if cfg.OneShot != nil {
		p.OneShot = *cfg.OneShot
	}
	if cfg.TiltThreshold > 0 {
		p.TiltThreshold = cfg.TiltThreshold
	}
	if p.Condition == gate.TiltDetection {
		p.PourDriven = true
	}
	if p.Condition == gate.ButtonPress && p.Button == "" {
		p.Button = DefaultButton
	}
	return p
}

func orFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func orDuration(p *time.Duration, def time.Duration) time.Duration {
	if p == nil {
		return def
	}
	return *p
}
