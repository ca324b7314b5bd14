package main

import (
	"fmt"

	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/session"
)

// replayer re-steps logged inputs against a session and checks that every
// tick books the same ledger entries.
type replayer struct {
	sess      *session.Session
	sessionID string
	fromTick  uint64
	toTick    uint64

	checked uint64
	done    bool
}

func (r *replayer) apply(entry session.TickLogEntry) error {
	if r.done || entry.SessionID != r.sessionID || entry.Tick == 0 || entry.Tick <= r.fromTick {
		return nil
	}
	if r.toTick != 0 && entry.Tick > r.toTick {
		r.done = true
		return nil
	}
	if want := r.sess.Tick() + 1; entry.Tick != want {
		return fmt.Errorf("tick gap: want=%d got=%d", want, entry.Tick)
	}
	res := r.sess.Step(entry.Input)
	got, want := taskEntries(res.Events), taskEntries(entry.Events)
	if len(got) != len(want) {
		return fmt.Errorf("tick %d: replay booked %d entries, log has %d", entry.Tick, len(got), len(want))
	}
	for i := range got {
		if !sameEntry(got[i], want[i]) {
			return fmt.Errorf("tick %d: entry %d differs: replay=%+v log=%+v", entry.Tick, i, got[i], want[i])
		}
	}
	r.checked++
	return nil
}

func taskEntries(events []session.Event) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range events {
		if e.Type == session.EventTask && e.Entry != nil {
			out = append(out, *e.Entry)
		}
	}
	return out
}

func sameEntry(a, b ledger.Entry) bool {
	return a.Kind == b.Kind && a.SiteID == b.SiteID && a.VesselID == b.VesselID &&
		a.Amount == b.Amount && a.Quality == b.Quality && a.TotalTasks == b.TotalTasks
}
