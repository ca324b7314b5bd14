package sites

import (
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

// Field takes one full bucket poured over it.
type Field struct {
	base
	qualityDecrease float64
	staminaCost     float64
}

func NewField(cfg Config, env Env) (*Field, error) {
	env.normalize()
	f := &Field{
		qualityDecrease: orFloat(cfg.QualityDecrease, FieldQualityDecrease),
		staminaCost:     orFloat(cfg.StaminaCost, DefaultReceiverCost),
	}
	p := profileFor(cfg, gate.Profile{
		Kinds:         []vessel.Kind{vessel.KindBucket},
		Fill:          gate.RequireFull,
		OneShot:       true,
		Cooldown:      DefaultCooldown,
		Condition:     gate.TiltDetection,
		TiltThreshold: DefaultTiltDegrees,
	})
	if err := f.init(cfg.ID, KindField, env, p, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Field) Execute(fr tickctx.Frame, v *vessel.Vessel) bool {
	amount, _, ok := f.take(fr, v)
	if !ok {
		return false
	}
	f.env.logf("%s: watered field amount=%.0f", f.id, amount)
	f.env.Ledger.RecordFarm(f.source(fr, v), amount, f.qualityDecrease, f.staminaCost)
	f.completed()
	return true
}
