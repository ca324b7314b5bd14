package vessel

import (
	"fmt"
	"math"
	"strings"
)

type Kind string

const (
	KindBucket Kind = "BUCKET"
	KindCup    Kind = "CUP"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindBucket:
		return KindBucket, nil
	case KindCup:
		return KindCup, nil
	}
	return "", fmt.Errorf("unknown vessel kind %q", s)
}

// DefaultCapacity is used when the scene does not set a capacity.
func DefaultCapacity(k Kind) float64 {
	switch k {
	case KindCup:
		return 10
	default:
		return 80
	}
}

const (
	MaxQuality = 100.0

	// Divisor floor for the quality blend.
	blendEpsilon = 1e-4
)

// Visual state names reported to the rendering collaborator.
const (
	StateEmpty = "empty"
	StateFull  = "full"
)

// Pose is the orientation sample supplied by the tracking collaborator.
type Pose struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// StateListener receives "empty"/"full" whenever HasWater flips.
type StateListener func(id string, state string)

type Vessel struct {
	ID          string
	Kind        Kind
	maxCapacity float64

	amount  float64
	quality float64

	Pose Pose

	onState StateListener
}

func New(id string, kind Kind, capacity float64) *Vessel {
	if capacity <= 0 {
		capacity = DefaultCapacity(kind)
	}
	return &Vessel{ID: id, Kind: kind, maxCapacity: capacity}
}

func (v *Vessel) SetStateListener(fn StateListener) { v.onState = fn }

func (v *Vessel) MaxCapacity() float64 { return v.maxCapacity }
func (v *Vessel) Amount() float64      { return v.amount }
func (v *Vessel) Quality() float64     { return v.quality }
func (v *Vessel) IsFull() bool         { return v.amount >= v.maxCapacity }
func (v *Vessel) HasWater() bool       { return v.amount > 0 }
func (v *Vessel) FreeSpace() float64   { return v.maxCapacity - v.amount }

// Fill adds up to amount liters at the given quality and returns what was
// actually added. The resulting quality is the volume-weighted average.
func (v *Vessel) Fill(amount, quality float64) float64 {
	if amount <= 0 || math.IsNaN(amount) {
		return 0
	}
	added := math.Min(amount, v.maxCapacity-v.amount)
	if added <= 0 {
		return 0
	}
	quality = clampQuality(quality)
	had := v.HasWater()
	if v.amount > 0 {
		total := math.Max(v.amount+added, blendEpsilon)
		v.quality = (v.quality*v.amount + quality*added) / total
	} else {
		v.quality = quality
	}
	v.amount += added
	if v.amount > v.maxCapacity {
		v.amount = v.maxCapacity
	}
	v.quality = clampQuality(v.quality)
	if !had {
		v.notify()
	}
	return added
}

// FillToCapacity is Fill with the full free space.
func (v *Vessel) FillToCapacity(quality float64) float64 {
	return v.Fill(v.maxCapacity, quality)
}

// Drain removes up to amount liters and returns what was removed.
func (v *Vessel) Drain(amount float64) float64 {
	if amount <= 0 || v.amount <= 0 || math.IsNaN(amount) {
		return 0
	}
	drained := math.Min(amount, v.amount)
	v.amount -= drained
	if v.amount <= 0 {
		v.amount = 0
		v.quality = 0
		v.notify()
	}
	return drained
}

func (v *Vessel) EmptyAll() float64 { return v.Drain(v.amount) }

// Restore sets the contents directly (snapshot import). Values are clamped.
func (v *Vessel) Restore(amount, quality float64) {
	if amount < 0 || math.IsNaN(amount) {
		amount = 0
	}
	if amount > v.maxCapacity {
		amount = v.maxCapacity
	}
	v.amount = amount
	if amount == 0 {
		v.quality = 0
	} else {
		v.quality = clampQuality(quality)
	}
	v.notify()
}

func (v *Vessel) notify() {
	if v.onState == nil {
		return
	}
	if v.HasWater() {
		v.onState(v.ID, StateFull)
	} else {
		v.onState(v.ID, StateEmpty)
	}
}

func (v *Vessel) String() string {
	return fmt.Sprintf("%s(%s %.1f/%.0fL q=%.1f)", v.ID, v.Kind, v.amount, v.maxCapacity, v.quality)
}

func clampQuality(q float64) float64 {
	if math.IsNaN(q) || q < 0 {
		return 0
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}
