// Package effects holds the collaborator contracts for visual feedback and
// timed effects, and the tick-relative scheduler that stops effects later.
package effects

import (
	"sort"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=./mocks/sinks_mock.go -package=mocks . VisualSink,EffectSink

// VisualSink receives state changes the renderer turns into materials/colors.
type VisualSink interface {
	SetVesselState(vesselID string, state string)
	SetSiteState(siteID string, state string)
}

// EffectSink starts and stops timed effects (water flow, transfer stream).
// A negative duration means the effect runs until stopped.
type EffectSink interface {
	StartEffect(id string, duration time.Duration)
	StopEffect(id string)
}

// Site visual states.
const (
	SiteBefore = "before"
	SiteAfter  = "after"
)

// Infinite marks an effect that only ends on an explicit stop.
const Infinite time.Duration = -1

type Nop struct{}

func (Nop) SetVesselState(string, string)     {}
func (Nop) SetSiteState(string, string)       {}
func (Nop) StartEffect(string, time.Duration) {}
func (Nop) StopEffect(string)                 {}

type pending struct {
	id  string
	at  time.Duration
	seq uint64
	fn  func()
}

// Scheduler runs deferred callbacks relative to simulation time. At most one
// callback is pending per id; scheduling again replaces it.
type Scheduler struct {
	items   map[string]*pending
	nextSeq uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{items: map[string]*pending{}}
}

func (s *Scheduler) After(now time.Duration, d time.Duration, id string, fn func()) {
	s.nextSeq++
	s.items[id] = &pending{id: id, at: now + d, seq: s.nextSeq, fn: fn}
}

// Cancel drops a pending callback without running it.
func (s *Scheduler) Cancel(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

func (s *Scheduler) Pending(id string) bool {
	_, ok := s.items[id]
	return ok
}

func (s *Scheduler) Len() int { return len(s.items) }

// Clear drops every pending callback.
func (s *Scheduler) Clear() { clear(s.items) }

// Advance runs every callback due at or before now, ordered by due time and
// then by scheduling order.
func (s *Scheduler) Advance(now time.Duration) int {
	var due []*pending
	for _, p := range s.items {
		if p.at <= now {
			due = append(due, p)
		}
	}
	if len(due) == 0 {
		return 0
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	for _, p := range due {
		// A callback earlier in this batch may have rescheduled or cancelled it.
		if cur, ok := s.items[p.id]; !ok || cur != p {
			continue
		}
		delete(s.items, p.id)
		p.fn()
	}
	return len(due)
}
