package sites

import (
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

// DrinkingPoint takes one full cup. Water below the safe threshold costs
// stamina and counts against hygiene.
type DrinkingPoint struct {
	base
	safeThreshold float64
	gain          float64
	loss          float64
}

func NewDrinkingPoint(cfg Config, env Env) (*DrinkingPoint, error) {
	env.normalize()
	d := &DrinkingPoint{
		safeThreshold: cfg.SafeThreshold,
		gain:          orFloat(cfg.StaminaGain, DrinkStaminaGain),
		loss:          orFloat(cfg.StaminaLoss, DrinkStaminaLoss),
	}
	if d.safeThreshold <= 0 {
		d.safeThreshold = ledger.DefaultSafeQualityThreshold
	}
	p := profileFor(cfg, gate.Profile{
		Kinds:         []vessel.Kind{vessel.KindCup},
		Fill:          gate.RequireFull,
		OneShot:       true,
		Cooldown:      DefaultCooldown,
		Condition:     gate.TiltDetection,
		TiltThreshold: DefaultTiltDegrees,
	})
	if err := d.init(cfg.ID, KindDrink, env, p, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DrinkingPoint) Safe(quality float64) bool { return quality >= d.safeThreshold }

func (d *DrinkingPoint) Execute(fr tickctx.Frame, v *vessel.Vessel) bool {
	amount, quality, ok := d.take(fr, v)
	if !ok {
		return false
	}
	safe := d.Safe(quality)
	d.env.logf("%s: drank amount=%.0f quality=%.0f safe=%v", d.id, amount, quality, safe)
	d.env.Ledger.RecordDrink(d.source(fr, v), amount, quality, safe, d.gain, d.loss)
	d.completed()
	return true
}
