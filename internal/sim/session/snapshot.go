package session

import (
	"fmt"
	"time"

	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/sites"
)

func (s *Session) ExportSnapshot() snapshot.SnapshotV1 {
	g := s.ledger.Gauges()
	h := s.ledger.History()
	snap := snapshot.SnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, SessionID: s.id, Tick: s.tick},
		TickRate:  s.tune.TickRateHz,
		ElapsedMS: s.now.Milliseconds(),
		MaxTasks:  s.ledger.MaxTasks(),
		Ledger: snapshot.LedgerV1{
			State:                string(s.ledger.State()),
			Seq:                  s.ledger.Seq(),
			WaterVolume:          g.WaterVolume,
			WaterQuality:         g.WaterQuality,
			Stamina:              g.Stamina,
			WaterDrawn:           h.WaterDrawn,
			WaterUsedForFarming:  h.WaterUsedForFarming,
			WaterUsedForDrinking: h.WaterUsedForDrinking,
			WaterUsedForWashing:  h.WaterUsedForWashing,
			WaterWasted:          h.WaterWasted,
			WaterPolluted:        h.WaterPolluted,
			UnsafeDrinking:       h.UnsafeDrinking,
			StaminaSpent:         h.StaminaSpent,
			StaminaRecovered:     h.StaminaRecovered,
			DrawCount:            h.DrawCount,
			FarmCount:            h.FarmCount,
			DrinkCount:           h.DrinkCount,
			WashCount:            h.WashCount,
			WasteCount:           h.WasteCount,
		},
	}
	for _, slot := range s.vessels {
		v := slot.v
		snap.Vessels = append(snap.Vessels, snapshot.VesselV1{
			ID:       v.ID,
			Kind:     string(v.Kind),
			Capacity: v.MaxCapacity(),
			Amount:   v.Amount(),
			Quality:  v.Quality(),
		})
	}
	for _, site := range s.sites {
		sv := snapshot.SiteV1{ID: site.ID(), Kind: string(site.Kind()), Completed: site.Gate().Completed()}
		if l, ok := site.(*sites.Laundry); ok {
			sv.Dirt = l.Dirt()
		}
		snap.Sites = append(snap.Sites, sv)
	}
	for _, tr := range s.transfers {
		snap.Transfers = append(snap.Transfers, snapshot.TransferV1{ID: tr.ID(), Moved: tr.Moved(), Count: tr.Count()})
	}
	for _, d := range s.diags.Entries() {
		snap.Diagnostics = append(snap.Diagnostics, snapshot.DiagnosticV1{Tick: d.Tick, Component: d.Component, Message: d.Message})
	}
	return snap
}

// ImportSnapshot resumes from snap on the current scene. Vessels and sites
// the scene no longer has are reported as diagnostics and skipped.
func (s *Session) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}
	if snap.TickRate != 0 && snap.TickRate != s.tune.TickRateHz {
		s.log.Printf("snapshot tick rate %d differs from %d", snap.TickRate, s.tune.TickRateHz)
	}
	if snap.Header.SessionID != "" {
		s.id = snap.Header.SessionID
	}
	s.tick = snap.Header.Tick
	s.now = time.Duration(snap.ElapsedMS) * time.Millisecond

	l := snap.Ledger
	s.ledger.Restore(
		ledger.Gauges{WaterVolume: l.WaterVolume, WaterQuality: l.WaterQuality, Stamina: l.Stamina},
		ledger.History{
			WaterDrawn:           l.WaterDrawn,
			WaterUsedForFarming:  l.WaterUsedForFarming,
			WaterUsedForDrinking: l.WaterUsedForDrinking,
			WaterUsedForWashing:  l.WaterUsedForWashing,
			WaterWasted:          l.WaterWasted,
			WaterPolluted:        l.WaterPolluted,
			UnsafeDrinking:       l.UnsafeDrinking,
			StaminaSpent:         l.StaminaSpent,
			StaminaRecovered:     l.StaminaRecovered,
			DrawCount:            l.DrawCount,
			FarmCount:            l.FarmCount,
			DrinkCount:           l.DrinkCount,
			WashCount:            l.WashCount,
			WasteCount:           l.WasteCount,
		},
		ledger.State(l.State),
		l.Seq,
	)

	for _, vs := range snap.Vessels {
		v := s.Vessel(vs.ID)
		if v == nil {
			s.diagnostic(vs.ID, "snapshot vessel not in scene")
			continue
		}
		v.Restore(vs.Amount, vs.Quality)
	}
	for _, ss := range snap.Sites {
		site := s.Site(ss.ID)
		if site == nil {
			s.diagnostic(ss.ID, "snapshot site not in scene")
			continue
		}
		site.Restore(ss.Completed)
		if l, ok := site.(*sites.Laundry); ok && ss.Kind == string(sites.KindLaundry) {
			l.SetDirt(ss.Dirt)
		}
	}
	s.log.Printf("session %s resumed at tick %d", s.id, s.tick)
	return nil
}
