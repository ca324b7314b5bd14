package tuning

import (
	"time"

	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/sites"
	"waterchores.dev/internal/sim/transfer"
	"waterchores.dev/internal/sim/vessel"
)

type VesselSpec struct {
	ID       string        `yaml:"id"`
	Kind     string        `yaml:"kind"`
	Capacity float64       `yaml:"capacity"`
	Transfer *TransferSpec `yaml:"transfer,omitempty"`
}

type TransferSpec struct {
	Amount        float64  `yaml:"amount"`
	DurationSec   *float64 `yaml:"duration_sec"`
	Condition     string   `yaml:"condition"`
	Button        string   `yaml:"button"`
	TiltThreshold float64  `yaml:"tilt_threshold_deg"`
}

type SiteSpec struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`

	Condition     string   `yaml:"condition"`
	Button        string   `yaml:"button"`
	CooldownSec   *float64 `yaml:"cooldown_sec"`
	OneShot       *bool    `yaml:"one_shot"`
	TiltThreshold float64  `yaml:"tilt_threshold_deg"`

	StaminaCost     *float64 `yaml:"stamina_cost"`
	QualityDecrease *float64 `yaml:"quality_decrease"`

	SafeThreshold float64  `yaml:"safe_threshold"`
	StaminaGain   *float64 `yaml:"stamina_gain"`
	StaminaLoss   *float64 `yaml:"stamina_loss"`

	CleanAmount float64 `yaml:"clean_amount"`
	DirtyAmount float64 `yaml:"dirty_amount"`

	WaterQuality    *float64 `yaml:"water_quality"`
	FlowDurationSec *float64 `yaml:"flow_duration_sec"`
	StopOnExit      bool     `yaml:"stop_on_exit"`
}

func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func secondsPtr(s *float64) *time.Duration {
	if s == nil {
		return nil
	}
	d := Seconds(*s)
	return &d
}

func (t Tuning) TiltCooldown() time.Duration { return Seconds(t.Tilt.CooldownSec) }

// Resolve returns the kind and capacity of a vessel spec.
func (s VesselSpec) Resolve() (vessel.Kind, float64, error) {
	if s.ID == "" {
		return "", 0, diag.Configf("vessel", "missing id")
	}
	k, err := vessel.ParseKind(s.Kind)
	if err != nil {
		return "", 0, diag.Configf(s.ID, "%v", err)
	}
	capacity := s.Capacity
	if capacity == 0 {
		capacity = vessel.DefaultCapacity(k)
	}
	if capacity < 0 {
		return "", 0, diag.Configf(s.ID, "capacity %.1f must be positive", capacity)
	}
	return k, capacity, nil
}

func (s TransferSpec) Config(id string) (transfer.Config, error) {
	cfg := transfer.Config{
		ID:            id,
		Amount:        s.Amount,
		Duration:      secondsPtr(s.DurationSec),
		Button:        s.Button,
		TiltThreshold: s.TiltThreshold,
	}
	if s.Amount < 0 {
		return cfg, diag.Configf(id, "transfer amount must not be negative")
	}
	if s.Condition != "" {
		c, err := gate.ParseCondition(s.Condition)
		if err != nil {
			return cfg, diag.Configf(id, "%v", err)
		}
		cfg.Condition = c
	}
	return cfg, nil
}

// SiteConfig converts a site spec, filling the session-wide safe threshold
// when the site does not set its own.
func (t Tuning) SiteConfig(s SiteSpec) (sites.Config, error) {
	cfg := sites.Config{
		ID:              s.ID,
		Button:          s.Button,
		Cooldown:        secondsPtr(s.CooldownSec),
		OneShot:         s.OneShot,
		TiltThreshold:   s.TiltThreshold,
		StaminaCost:     s.StaminaCost,
		QualityDecrease: s.QualityDecrease,
		SafeThreshold:   s.SafeThreshold,
		StaminaGain:     s.StaminaGain,
		StaminaLoss:     s.StaminaLoss,
		CleanAmount:     s.CleanAmount,
		DirtyAmount:     s.DirtyAmount,
		WaterQuality:    s.WaterQuality,
		FlowDuration:    secondsPtr(s.FlowDurationSec),
		StopOnExit:      s.StopOnExit,
	}
	if s.ID == "" {
		return cfg, diag.Configf("site", "missing id")
	}
	k, err := sites.ParseKind(s.Kind)
	if err != nil {
		return cfg, diag.Configf(s.ID, "%v", err)
	}
	cfg.Kind = k
	if s.Condition != "" {
		c, err := gate.ParseCondition(s.Condition)
		if err != nil {
			return cfg, diag.Configf(s.ID, "%v", err)
		}
		cfg.Condition = c
	}
	if cfg.SafeThreshold == 0 {
		cfg.SafeThreshold = t.SafeQualityThreshold
	}
	if cfg.TiltThreshold == 0 {
		cfg.TiltThreshold = t.Tilt.ThresholdDeg
	}
	return cfg, nil
}
