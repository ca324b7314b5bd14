package sites

import (
	"time"

	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

// Tap fills a vessel to capacity. While its water effect is flowing it does
// not fill again.
type Tap struct {
	base
	quality     float64
	staminaCost float64
	flow        time.Duration
	stopOnExit  bool
	flowing     bool
}

func NewTap(cfg Config, env Env) (*Tap, error) {
	env.normalize()
	t := &Tap{
		quality:     orFloat(cfg.WaterQuality, TapWaterQuality),
		staminaCost: orFloat(cfg.StaminaCost, TapStaminaCost),
		flow:        orDuration(cfg.FlowDuration, TapFlowDuration),
		stopOnExit:  cfg.StopOnExit,
	}
	if cfg.Condition == gate.TiltDetection {
		return nil, diag.Configf(cfg.ID, "a tap cannot be tilt triggered")
	}
	oneShot := false
	if cfg.OneShot != nil {
		oneShot = *cfg.OneShot
	}
	p := profileFor(cfg, gate.Profile{
		Fill:      gate.RequireNotFull,
		OneShot:   oneShot,
		Condition: gate.ButtonPress,
	})
	t.base.id, t.base.kind, t.base.env = cfg.ID, KindTap, env
	g, err := gate.New(cfg.ID, p, t, gate.Hooks{OnExit: t.onTargetExit})
	if err != nil {
		return nil, err
	}
	t.gate = g
	return t, nil
}

func (t *Tap) Flowing() bool { return t.flowing }

func (t *Tap) Execute(fr tickctx.Frame, v *vessel.Vessel) bool {
	if t.flowing || !fr.Guard.Claim(t.id, v) {
		return false
	}
	added := v.FillToCapacity(t.quality)
	if added <= 0 {
		return false
	}
	t.env.logf("%s: filled %s amount=%.0f quality=%.0f", t.id, v.ID, added, t.quality)
	t.env.Ledger.RecordDraw(t.source(fr, v), added, t.quality, t.staminaCost)
	t.startFlow(fr.Now)
	return true
}

func (t *Tap) startFlow(now time.Duration) {
	t.flowing = true
	t.env.Effects.StartEffect(t.id, t.flow)
	if t.flow >= 0 {
		t.env.Scheduler.After(now, t.flow, t.id, t.stopFlow)
	}
}

func (t *Tap) stopFlow() {
	if !t.flowing {
		return
	}
	t.flowing = false
	t.env.Scheduler.Cancel(t.id)
	t.env.Effects.StopEffect(t.id)
}

func (t *Tap) Reset() {
	t.stopFlow()
	t.gate.Reset()
}

func (t *Tap) Restore(completed bool) { t.gate.Restore(completed) }

// An infinite flow always ends when the vessel leaves; a timed one only with
// stop-on-exit.
func (t *Tap) onTargetExit(tickctx.Frame, *vessel.Vessel) {
	if t.flowing && (t.stopOnExit || t.flow < 0) {
		t.stopFlow()
	}
}
