package sites

import (
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

const maxDirt = 100.0

// Laundry takes one full vessel of either kind. The washed item keeps a dirt
// level that safe water lowers and unsafe water raises.
type Laundry struct {
	base
	qualityDecrease float64
	staminaCost     float64
	cleanAmount     float64
	dirtyAmount     float64
	safeThreshold   float64
	dirt            float64
}

func NewLaundry(cfg Config, env Env) (*Laundry, error) {
	env.normalize()
	l := &Laundry{
		qualityDecrease: orFloat(cfg.QualityDecrease, LaundryQualityDecrease),
		staminaCost:     orFloat(cfg.StaminaCost, DefaultReceiverCost),
		cleanAmount:     cfg.CleanAmount,
		dirtyAmount:     cfg.DirtyAmount,
		safeThreshold:   cfg.SafeThreshold,
		dirt:            maxDirt,
	}
	if l.safeThreshold <= 0 {
		l.safeThreshold = ledger.DefaultSafeQualityThreshold
	}
	if l.cleanAmount <= 0 {
		l.cleanAmount = LaundryCleanAmount
	}
	if l.dirtyAmount <= 0 {
		l.dirtyAmount = LaundryDirtyAmount
	}
	p := profileFor(cfg, gate.Profile{
		Fill:          gate.RequireFull,
		OneShot:       true,
		Cooldown:      DefaultCooldown,
		Condition:     gate.TiltDetection,
		TiltThreshold: DefaultTiltDegrees,
	})
	if err := l.init(cfg.ID, KindLaundry, env, p, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Laundry) Dirt() float64 { return l.dirt }

func (l *Laundry) SetDirt(d float64) { l.dirt = clampDirt(d) }

func (l *Laundry) Reset() {
	l.base.Reset()
	l.dirt = maxDirt
}

func (l *Laundry) Execute(fr tickctx.Frame, v *vessel.Vessel) bool {
	amount, quality, ok := l.take(fr, v)
	if !ok {
		return false
	}
	if quality >= l.safeThreshold {
		l.dirt = clampDirt(l.dirt - l.cleanAmount)
	} else {
		l.dirt = clampDirt(l.dirt + l.dirtyAmount)
	}
	l.env.logf("%s: washed amount=%.0f dirt=%.0f", l.id, amount, l.dirt)
	l.env.Ledger.RecordLaundry(l.source(fr, v), amount, l.qualityDecrease, l.staminaCost)
	l.completed()
	return true
}

func clampDirt(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > maxDirt {
		return maxDirt
	}
	return d
}
