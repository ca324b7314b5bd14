package gate

import (
	"fmt"
	"strings"
	"time"

	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/vessel"
)

type Condition string

const (
	ButtonPress        Condition = "BUTTON_PRESS"
	TiltDetection      Condition = "TILT_DETECTION"
	CollisionDetection Condition = "COLLISION_DETECTION"
)

func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToUpper(strings.TrimSpace(s))); c {
	case ButtonPress, TiltDetection, CollisionDetection:
		return c, nil
	}
	return "", fmt.Errorf("unknown condition %q", s)
}

// FillRequirement filters vessels by their contents.
type FillRequirement string

const (
	RequireFull     FillRequirement = "FULL"
	RequireNotFull  FillRequirement = "NOT_FULL"
	RequireHasWater FillRequirement = "HAS_WATER"
	RequireAny      FillRequirement = "ANY"
)

func (f FillRequirement) Satisfied(v *vessel.Vessel) bool {
	switch f {
	case RequireFull:
		return v.IsFull()
	case RequireNotFull:
		return !v.IsFull()
	case RequireHasWater:
		return v.HasWater()
	case RequireAny, "":
		return true
	}
	return false
}

// Profile is the data that configures a gate.
type Profile struct {
	// Empty means every kind is accepted.
	Kinds []vessel.Kind
	Fill  FillRequirement

	OneShot      bool
	OncePerVisit bool
	Cooldown     time.Duration

	Condition     Condition
	Button        string
	TiltThreshold float64
	TiltCooldown  time.Duration

	// PourDriven gates do not poll tilt; the vessel's own detector delivers
	// pours through its receiver registry and the owner calls Offer.
	PourDriven bool

	// Accept is an optional extra eligibility predicate.
	Accept func(*vessel.Vessel) bool
}

func (p Profile) AcceptsKind(k vessel.Kind) bool {
	if len(p.Kinds) == 0 {
		return true
	}
	for _, want := range p.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Eligible applies the kind filter, the fill requirement and Accept.
func (p Profile) Eligible(v *vessel.Vessel) bool {
	if v == nil || !p.AcceptsKind(v.Kind) || !p.Fill.Satisfied(v) {
		return false
	}
	return p.Accept == nil || p.Accept(v)
}

// Validate reports a ConfigurationError for a profile that could never fire.
func (p Profile) Validate(component string) error {
	switch p.Condition {
	case ButtonPress:
		if strings.TrimSpace(p.Button) == "" {
			return diag.Configf(component, "button condition without a button")
		}
	case TiltDetection:
		if p.TiltThreshold < 0 || p.TiltThreshold >= 180 {
			return diag.Configf(component, "tilt threshold %.1f out of range", p.TiltThreshold)
		}
	case CollisionDetection:
		if p.PourDriven {
			return diag.Configf(component, "collision condition cannot be pour driven")
		}
	default:
		return diag.Configf(component, "unknown condition %q", p.Condition)
	}
	switch p.Fill {
	case RequireFull, RequireNotFull, RequireHasWater, RequireAny, "":
	default:
		return diag.Configf(component, "unknown fill requirement %q", p.Fill)
	}
	if p.Cooldown < 0 {
		return diag.Configf(component, "negative cooldown")
	}
	return nil
}
