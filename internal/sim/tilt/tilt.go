package tilt

import (
	"math"
	"time"

	"waterchores.dev/internal/sim/vessel"
)

// NormalizeAngle maps a raw euler angle in degrees into [0,180].
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(math.Abs(deg), 360)
	if a > 180 {
		a = 360 - a
	}
	return a
}

// IsPouring reports whether either axis is past the threshold.
func IsPouring(p vessel.Pose, thresholdDeg float64) bool {
	return math.Max(NormalizeAngle(p.Pitch), NormalizeAngle(p.Roll)) > thresholdDeg
}

// Detector turns per-tick pose samples into rising-edge "pour" events.
// Edges that land inside the cooldown window are dropped, not queued.
type Detector struct {
	Threshold float64
	Cooldown  time.Duration

	wasTilted bool
	fired     bool
	lastFire  time.Duration
}

func NewDetector(thresholdDeg float64, cooldown time.Duration) *Detector {
	if thresholdDeg <= 0 {
		thresholdDeg = 45
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &Detector{Threshold: thresholdDeg, Cooldown: cooldown}
}

// Update samples the pose at time now and reports whether a pour fires.
func (d *Detector) Update(now time.Duration, p vessel.Pose) bool {
	tilted := IsPouring(p, d.Threshold)
	edge := tilted && !d.wasTilted
	d.wasTilted = tilted
	if !edge {
		return false
	}
	if d.fired && now-d.lastFire < d.Cooldown {
		return false
	}
	d.fired = true
	d.lastFire = now
	return true
}

// Reset forgets the previous-frame sample. Called while the vessel is empty.
func (d *Detector) Reset() { d.wasTilted = false }

func (d *Detector) Tilted() bool { return d.wasTilted }

// Prime records the current pose as the previous sample without firing, so a
// vessel that starts out tilted has to straighten up before it can pour.
func (d *Detector) Prime(p vessel.Pose) { d.wasTilted = IsPouring(p, d.Threshold) }
