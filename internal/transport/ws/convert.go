package ws

import (
	"fmt"

	"waterchores.dev/internal/protocol"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/vessel"
)

// InputFromMsg converts a client INPUT frame. Unknown overlap kinds are
// rejected as a whole so the frame is never half applied.
func InputFromMsg(m protocol.InputMsg) (session.Input, error) {
	var in session.Input
	if len(m.Poses) > 0 {
		in.Poses = make(map[string]vessel.Pose, len(m.Poses))
		for id, p := range m.Poses {
			// Yaw does not affect pouring.
			in.Poses[id] = vessel.Pose{Pitch: p.Pitch, Roll: p.Roll}
		}
	}
	in.Buttons = append(in.Buttons, m.Buttons...)
	for i, o := range m.Overlaps {
		kind := session.OverlapKind(o.Kind)
		switch kind {
		case session.OverlapEnter, session.OverlapStay, session.OverlapExit:
		default:
			return session.Input{}, fmt.Errorf("overlaps[%d]: unknown kind %q", i, o.Kind)
		}
		if o.Volume == "" || o.Vessel == "" {
			return session.Input{}, fmt.Errorf("overlaps[%d]: volume and vessel are required", i)
		}
		in.Overlaps = append(in.Overlaps, session.Overlap{Kind: kind, Volume: o.Volume, Vessel: o.Vessel})
	}
	return in, nil
}

func SummaryObs(s ledger.Summary) protocol.SummaryObs {
	h := s.History
	return protocol.SummaryObs{
		State:        string(s.State),
		Tasks:        s.Tasks,
		MaxTasks:     s.MaxTasks,
		WaterVolume:  s.Gauges.WaterVolume,
		WaterQuality: s.Gauges.WaterQuality,
		Stamina:      s.Gauges.Stamina,
		Hygiene:      s.Hygiene,
		Efficiency:   s.Efficiency,
		History: protocol.HistoryObs{
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
}

func EventObs(e session.Event) protocol.EventObs {
	o := protocol.EventObs{Tick: e.Tick, Type: string(e.Type)}
	switch {
	case e.Entry != nil:
		o.Kind = string(e.Entry.Kind)
		o.Site = e.Entry.SiteID
		o.Vessel = e.Entry.VesselID
		o.Amount = e.Entry.Amount
		o.Quality = e.Entry.Quality
	case e.Transfer != nil:
		o.Kind = string(e.Transfer.Direction)
		o.From = e.Transfer.From
		o.To = e.Transfer.To
		o.Amount = e.Transfer.Amount
		o.Quality = e.Transfer.Quality
	case e.Pour != nil:
		o.Vessel = e.Pour.Vessel
		o.Site = e.Pour.ExecutedBy
		o.Amount = e.Pour.Amount
		o.Quality = e.Pour.Quality
	case e.Spill != nil:
		o.Vessel = e.Spill.Vessel
		o.Amount = e.Spill.Amount
		o.Quality = e.Spill.Quality
		if e.Spill.Disposed {
			o.Kind = "DISPOSED"
		}
	case e.Diagnostic != nil:
		o.Site = e.Diagnostic.Component
		o.Message = e.Diagnostic.Message
	}
	return o
}

// StateMsg builds the per-tick push.
func StateMsg(res session.StepResult, vessels []session.VesselStatus) protocol.StateMsg {
	m := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		SessionID:       res.SessionID,
		Tick:            res.Tick,
		ElapsedMS:       res.Elapsed.Milliseconds(),
		Summary:         SummaryObs(res.Summary),
	}
	for _, e := range res.Events {
		m.Events = append(m.Events, EventObs(e))
	}
	for _, v := range vessels {
		m.Vessels = append(m.Vessels, protocol.VesselObs{ID: v.ID, Amount: v.Amount, Quality: v.Quality})
	}
	return m
}

func WelcomeMsg(st session.Status) protocol.WelcomeMsg {
	m := protocol.WelcomeMsg{
		Type:                 protocol.TypeWelcome,
		ProtocolVersion:      protocol.Version,
		SessionID:            st.SessionID,
		TickRateHz:           st.TickRateHz,
		MaxTasks:             st.Summary.MaxTasks,
		SafeQualityThreshold: st.SafeQualityThreshold,
		Transfers:            st.Transfers,
	}
	for _, v := range st.Vessels {
		m.Vessels = append(m.Vessels, protocol.VesselRef{ID: v.ID, Kind: string(v.Kind), Capacity: v.Capacity})
	}
	for _, s := range st.Sites {
		m.Sites = append(m.Sites, protocol.SiteRef{ID: s.ID, Kind: s.Kind})
	}
	return m
}
