package receiver

import (
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

// Receiver is anything that can consume a pour from a vessel in range.
type Receiver interface {
	ReceiverID() string
	// Valid is false once the receiver was removed from the scene; the
	// registry drops such entries on the next notification.
	Valid() bool
	CanReceiveWater() bool
	// ReceiveWater reports whether a task executed for this pour.
	ReceiveWater(fr tickctx.Frame, v *vessel.Vessel, amount, quality float64) bool
}

// SpillFunc is called when a pour reached no receiver.
type SpillFunc func(fr tickctx.Frame, v *vessel.Vessel, amount, quality float64)

// Registry holds the receivers currently overlapping one vessel's pour
// volume, in registration order. The first registered eligible receiver wins.
type Registry struct {
	vessel  *vessel.Vessel
	entries []Receiver
	onSpill SpillFunc
}

func NewRegistry(v *vessel.Vessel) *Registry {
	return &Registry{vessel: v}
}

func (r *Registry) Vessel() *vessel.Vessel { return r.vessel }

func (r *Registry) SetSpillHandler(fn SpillFunc) { r.onSpill = fn }

func (r *Registry) Register(rc Receiver) {
	if rc == nil || r.indexOf(rc) >= 0 {
		return
	}
	r.entries = append(r.entries, rc)
}

func (r *Registry) Unregister(rc Receiver) {
	i := r.indexOf(rc)
	if i < 0 {
		return
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
}

func (r *Registry) Contains(rc Receiver) bool { return r.indexOf(rc) >= 0 }

func (r *Registry) Len() int { return len(r.entries) }

// IDs lists the registered receivers in notification order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.ReceiverID())
	}
	return out
}

func (r *Registry) indexOf(rc Receiver) int {
	if rc == nil {
		return -1
	}
	for i, e := range r.entries {
		if e == rc {
			return i
		}
	}
	return -1
}

func (r *Registry) prune() {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e != nil && e.Valid() {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
}

// NotifyAll offers a pour to the registered receivers and stops at the first
// one that executes. It returns the executing receiver, or nil.
func (r *Registry) NotifyAll(fr tickctx.Frame, amount, quality float64) Receiver {
	r.prune()
	// Receivers may unregister themselves while handling the pour.
	snapshot := append([]Receiver(nil), r.entries...)
	for _, e := range snapshot {
		if !e.CanReceiveWater() {
			continue
		}
		if e.ReceiveWater(fr, r.vessel, amount, quality) {
			return e
		}
	}
	return nil
}

type PourResult struct {
	Amount     float64
	Quality    float64
	ExecutedBy string
	Spilled    bool
}

// Pour runs the tilt-triggered drain: the contents are captured before
// draining, offered to the receivers, then the vessel is emptied regardless
// of the outcome. A pour no receiver took is reported to the spill handler.
func (r *Registry) Pour(fr tickctx.Frame) PourResult {
	v := r.vessel
	res := PourResult{Amount: v.Amount(), Quality: v.Quality()}
	if res.Amount <= 0 {
		return res
	}
	by := r.NotifyAll(fr, res.Amount, res.Quality)
	v.EmptyAll()
	if by != nil {
		res.ExecutedBy = by.ReceiverID()
		return res
	}
	res.Spilled = true
	if r.onSpill != nil {
		r.onSpill(fr, v, res.Amount, res.Quality)
	}
	return res
}
