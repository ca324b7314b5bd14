package sites

import (
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/receiver"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

// DisposalZone accepts any pour from any vessel inside it. Unlike the other
// sites it has no single target: every vessel that enters joins the zone
// through its own registry, and pours always execute.
type DisposalZone struct {
	base
	qualityDecrease float64
	staminaCost     float64

	members []member
}

type member struct {
	v   *vessel.Vessel
	reg *receiver.Registry
}

func NewDisposalZone(cfg Config, env Env) (*DisposalZone, error) {
	env.normalize()
	z := &DisposalZone{
		qualityDecrease: orFloat(cfg.QualityDecrease, DisposalQualityDecrease),
		staminaCost:     orFloat(cfg.StaminaCost, DisposalStaminaCost),
	}
	cfg.Condition = gate.TiltDetection
	cfg.Cooldown = nil
	cfg.OneShot = nil
	p := profileFor(cfg, gate.Profile{
		Fill:          gate.RequireHasWater,
		Condition:     gate.TiltDetection,
		TiltThreshold: DefaultTiltDegrees,
	})
	if err := z.init(cfg.ID, KindDisposal, env, p, z); err != nil {
		return nil, err
	}
	return z, nil
}

func (z *DisposalZone) Volume() gate.Volume { return z }

// Members lists the vessels inside the zone in entry order.
func (z *DisposalZone) Members() []string {
	out := make([]string, 0, len(z.members))
	for _, m := range z.members {
		out = append(out, m.v.ID)
	}
	return out
}

func (z *DisposalZone) Enter(_ tickctx.Frame, v *vessel.Vessel) bool {
	if v == nil || z.removed || z.indexOf(v) >= 0 || z.env.Registry == nil {
		return false
	}
	reg := z.env.Registry(v)
	if reg == nil {
		return false
	}
	reg.Register(z)
	z.members = append(z.members, member{v: v, reg: reg})
	return false
}

func (z *DisposalZone) Stay(fr tickctx.Frame, v *vessel.Vessel) bool {
	return z.Enter(fr, v)
}

func (z *DisposalZone) Exit(_ tickctx.Frame, v *vessel.Vessel) {
	i := z.indexOf(v)
	if i < 0 {
		return
	}
	z.members[i].reg.Unregister(z)
	z.members = append(z.members[:i], z.members[i+1:]...)
}

func (z *DisposalZone) indexOf(v *vessel.Vessel) int {
	for i, m := range z.members {
		if m.v == v {
			return i
		}
	}
	return -1
}

func (z *DisposalZone) Remove() {
	z.base.Remove()
	z.members = nil
}

func (z *DisposalZone) CanReceiveWater() bool { return !z.removed }

func (z *DisposalZone) ReceiveWater(fr tickctx.Frame, v *vessel.Vessel, amount, quality float64) bool {
	if z.removed || z.indexOf(v) < 0 {
		return false
	}
	z.pending = &offer{amount: amount, quality: quality}
	defer func() { z.pending = nil }()
	return z.Execute(fr, v)
}

func (z *DisposalZone) Execute(fr tickctx.Frame, v *vessel.Vessel) bool {
	amount, quality, ok := z.take(fr, v)
	if !ok {
		return false
	}
	z.env.logf("%s: disposed %s amount=%.0f", z.id, v.ID, amount)
	z.env.Ledger.RecordWaste(z.source(fr, v), amount, quality, z.qualityDecrease, z.staminaCost)
	z.completed()
	return true
}
