package session

import (
	"sort"

	"github.com/google/uuid"

	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/transfer"
	"waterchores.dev/internal/sim/vessel"
)

// Step advances the session by one tick. The order is fixed:
//
//  1. clock and per-tick guard
//  2. poses, then overlap events in arrival order
//  3. site and transfer gates (buttons, polled tilt), in scene order
//  4. vessel pours; a vessel already filled or drained this tick is
//     evaluated next tick instead, and a tilt that drove a transfer does
//     not pour
//  5. timed effect stops
func (s *Session) Step(in Input) StepResult {
	s.tick++
	s.now += s.interval
	s.guard.Begin(s.tick)
	s.events = s.events[:0]

	buttons := make(map[string]bool, len(in.Buttons))
	for _, b := range in.Buttons {
		buttons[b] = true
	}
	fr := s.frame(buttons)

	s.applyPoses(in.Poses)
	for _, ov := range in.Overlaps {
		s.applyOverlap(fr, ov)
	}

	for _, site := range s.sites {
		site.Gate().Tick(fr)
	}
	for _, tr := range s.transfers {
		tr.Gate().Tick(fr)
	}

	s.pourVessels(fr)

	s.sched.Advance(s.now)

	res := StepResult{
		SessionID: s.id,
		Tick:      s.tick,
		Elapsed:   s.now,
		Events:    append([]Event(nil), s.events...),
		Summary:   s.ledger.Summary(),
	}
	s.afterStep(in, res)
	return res
}

func (s *Session) applyPoses(poses map[string]vessel.Pose) {
	if len(poses) == 0 {
		return
	}
	ids := make([]string, 0, len(poses))
	for id := range poses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		slot := s.vesselIdx[id]
		if slot == nil {
			s.diagnostic(id, "pose for unknown vessel")
			continue
		}
		slot.v.Pose = poses[id]
	}
}

func (s *Session) applyOverlap(fr tickctx.Frame, ov Overlap) {
	g := s.volumes[ov.Volume]
	if g == nil {
		s.diagnostic(ov.Volume, "overlap on unknown volume")
		return
	}
	slot := s.vesselIdx[ov.Vessel]
	if slot == nil {
		s.diagnostic(ov.Vessel, "overlap from unknown vessel")
		return
	}
	switch ov.Kind {
	case OverlapEnter:
		g.Enter(fr, slot.v)
	case OverlapStay:
		g.Stay(fr, slot.v)
	case OverlapExit:
		g.Exit(fr, slot.v)
	default:
		s.diagnostic(ov.Volume, "unknown overlap kind %q", ov.Kind)
	}
}

func (s *Session) pourVessels(fr tickctx.Frame) {
	for _, slot := range s.vessels {
		v := slot.v
		if s.guard.Claimed(v) {
			// A tilt that drove a transfer is used up; a fill or drain only
			// defers the pour to the next tick.
			if s.transferIDs[s.guard.Owner(v)] {
				slot.detector.Prime(v.Pose)
			}
			continue
		}
		if !v.HasWater() {
			slot.detector.Reset()
			continue
		}
		if !slot.detector.Update(s.now, v.Pose) {
			continue
		}
		s.guard.Claim("pour", v)
		res := slot.reg.Pour(fr)
		s.events = append(s.events, Event{Tick: s.tick, Type: EventPour, Pour: &Pour{
			Vessel:     v.ID,
			Amount:     res.Amount,
			Quality:    res.Quality,
			ExecutedBy: res.ExecutedBy,
		}})
	}
}

func (s *Session) afterStep(in Input, res StepResult) {
	if s.cfg.TickLogger != nil {
		if err := s.cfg.TickLogger.WriteTick(TickLogEntry{SessionID: s.id, Tick: s.tick, Input: in, Events: res.Events}); err != nil {
			s.log.Printf("tick log: %v", err)
		}
	}
	ended := res.Ended()
	if s.cfg.SnapshotSink != nil {
		every := uint64(s.tune.SnapshotEveryTicks)
		if ended || (every > 0 && s.tick%every == 0) {
			select {
			case s.cfg.SnapshotSink <- s.ExportSnapshot():
			default:
				s.log.Printf("snapshot sink full, dropped tick %d", s.tick)
			}
		}
	}
	if s.cfg.Publish != nil {
		s.cfg.Publish(res)
	}
}

func (s *Session) onEntry(e ledger.Entry) {
	s.events = append(s.events, Event{Tick: s.tick, Type: EventTask, Entry: &e})
}

func (s *Session) onEnd(sum ledger.Summary) {
	s.log.Printf("session %s ended at tick %d: tasks=%d hygiene=%.1f efficiency=%.1f",
		s.id, s.tick, sum.Tasks, sum.Hygiene, sum.Efficiency)
	s.events = append(s.events, Event{Tick: s.tick, Type: EventEnded, Summary: &sum, SessionID: s.id})
}

func (s *Session) onTransfer(r transfer.Result) {
	s.events = append(s.events, Event{Tick: s.tick, Type: EventTransfer, Transfer: &r})
}

// onSpill handles a pour nothing received. The water is gone either way;
// with auto_dispose_spills it is also booked as waste.
func (s *Session) onSpill(fr tickctx.Frame, v *vessel.Vessel, amount, quality float64) {
	sp := &Spill{Vessel: v.ID, Amount: amount, Quality: quality}
	if s.tune.AutoDisposeSpills {
		sp.Disposed = true
		s.ledger.RecordWaste(ledger.Source{Tick: fr.Tick, Vessel: v.ID}, amount, quality, 0, 0)
	}
	s.log.Printf("spill: %s poured %.1f with no receiver", v.ID, amount)
	s.events = append(s.events, Event{Tick: fr.Tick, Type: EventSpill, Spill: sp})
}

// Reset starts a new session on the same scene: the ledger, vessel contents,
// site completion and running effects return to their initial state and a
// new session ID is issued. Overlap state is kept; vessels still inside a
// volume stay its target.
func (s *Session) Reset() string {
	prev := s.id
	s.id = uuid.NewString()
	s.ledger.Reset()
	for _, slot := range s.vessels {
		slot.v.Restore(0, 0)
		slot.detector.Reset()
	}
	for _, site := range s.sites {
		site.Reset()
	}
	for _, tr := range s.transfers {
		tr.Cancel()
		tr.Gate().Reset()
	}
	s.sched.Clear()
	s.tick = 0
	s.now = 0
	s.log.Printf("session %s reset, new session %s", prev, s.id)
	return s.id
}
