package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	DiagnosticsMax     int `yaml:"diagnostics_max"`

	MaxTasks             int     `yaml:"max_tasks"`
	SafeQualityThreshold float64 `yaml:"safe_quality_threshold"`
	// AutoDisposeSpills books a pour nobody received as waste.
	AutoDisposeSpills bool `yaml:"auto_dispose_spills"`

	Tilt    TiltTuning   `yaml:"tilt"`
	Vessels []VesselSpec `yaml:"vessels"`
	Sites   []SiteSpec   `yaml:"sites"`
}

type TiltTuning struct {
	ThresholdDeg float64 `yaml:"threshold_deg"`
	CooldownSec  float64 `yaml:"cooldown_sec"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:      "1.0",
		TickRateHz:           30,
		SnapshotEveryTicks:   900,
		DiagnosticsMax:       256,
		MaxTasks:             5,
		SafeQualityThreshold: 80,
		Tilt:                 TiltTuning{ThresholdDeg: 45, CooldownSec: 0.3},
		Vessels: []VesselSpec{
			{ID: "bucket", Kind: "BUCKET", Transfer: &TransferSpec{}},
			{ID: "cup", Kind: "CUP"},
		},
		Sites: []SiteSpec{
			{ID: "tap", Kind: "TAP", Condition: "BUTTON_PRESS"},
			{ID: "field", Kind: "FIELD"},
			{ID: "well", Kind: "DRINKING_POINT"},
			{ID: "laundry", Kind: "LAUNDRY"},
			{ID: "drain", Kind: "DISPOSAL"},
		},
	}
}

func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t, err := Parse(raw)
	if err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Parse decodes a tuning document. Missing global values fall back to
// Defaults; an empty scene keeps the default scene.
func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, err
	}
	t.fill(Defaults())
	return t, t.Validate()
}

func (t *Tuning) fill(d Tuning) {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz == 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.SnapshotEveryTicks == 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
	if t.DiagnosticsMax == 0 {
		t.DiagnosticsMax = d.DiagnosticsMax
	}
	if t.MaxTasks == 0 {
		t.MaxTasks = d.MaxTasks
	}
	if t.SafeQualityThreshold == 0 {
		t.SafeQualityThreshold = d.SafeQualityThreshold
	}
	if t.Tilt.ThresholdDeg == 0 {
		t.Tilt.ThresholdDeg = d.Tilt.ThresholdDeg
	}
	if t.Tilt.CooldownSec == 0 {
		t.Tilt.CooldownSec = d.Tilt.CooldownSec
	}
	if len(t.Vessels) == 0 && len(t.Sites) == 0 {
		t.Vessels = d.Vessels
		t.Sites = d.Sites
	}
}

// Validate checks the session-wide values. Problems with single vessels or
// sites are reported when the scene is built, so one bad component does not
// stop the session.
func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 || t.TickRateHz > 240 {
		errs = append(errs, fmt.Errorf("tick_rate_hz %d out of range (1..240)", t.TickRateHz))
	}
	if t.MaxTasks < 0 {
		errs = append(errs, fmt.Errorf("max_tasks must not be negative"))
	}
	if t.SafeQualityThreshold < 0 || t.SafeQualityThreshold > 100 {
		errs = append(errs, fmt.Errorf("safe_quality_threshold %.1f out of range (0..100)", t.SafeQualityThreshold))
	}
	if t.Tilt.ThresholdDeg < 0 || t.Tilt.ThresholdDeg >= 180 {
		errs = append(errs, fmt.Errorf("tilt.threshold_deg %.1f out of range", t.Tilt.ThresholdDeg))
	}
	if t.Tilt.CooldownSec < 0 {
		errs = append(errs, fmt.Errorf("tilt.cooldown_sec must not be negative"))
	}
	return errors.Join(errs...)
}
