package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/effects"
	"waterchores.dev/internal/sim/effects/mocks"
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/tuning"
	"waterchores.dev/internal/sim/vessel"
)

func enter(volume, v string) Overlap { return Overlap{Kind: OverlapEnter, Volume: volume, Vessel: v} }
func exit(volume, v string) Overlap  { return Overlap{Kind: OverlapExit, Volume: volume, Vessel: v} }

func tilted() vessel.Pose { return vessel.Pose{Pitch: 90} }

func newSession(t *testing.T, tune tuning.Tuning) *Session {
	t.Helper()
	s, err := New(Config{ID: "test", Tuning: tune})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func idle(s *Session, n int) {
	for i := 0; i < n; i++ {
		s.Step(Input{})
	}
}

func hasEvent(res StepResult, typ EventType) bool {
	for _, e := range res.Events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// fillAtTap enters the tap, presses the trigger and leaves again.
func fillAtTap(s *Session, v string) {
	s.Step(Input{Overlaps: []Overlap{enter("tap", v)}, Poses: map[string]vessel.Pose{v: {}}})
	s.Step(Input{Buttons: []string{"trigger"}})
	s.Step(Input{Overlaps: []Overlap{exit("tap", v)}})
}

func TestSession_ChoresFlow(t *testing.T) {
	s := newSession(t, tuning.Defaults())

	fillAtTap(s, "bucket")
	if got := s.Vessel("bucket").Amount(); got != 80 {
		t.Fatalf("bucket after tap: %v", got)
	}
	s.Step(Input{Overlaps: []Overlap{enter("field", "bucket")}})
	res := s.Step(Input{Poses: map[string]vessel.Pose{"bucket": tilted()}})
	if !hasEvent(res, EventTask) || !hasEvent(res, EventPour) {
		t.Fatalf("pour over the field produced %+v", res.Events)
	}
	if s.Vessel("bucket").HasWater() || !s.Site("field").Gate().Completed() {
		t.Fatalf("field not watered")
	}

	// The tap is still flowing from the bucket; wait it out.
	s.Step(Input{Overlaps: []Overlap{exit("field", "bucket")}, Poses: map[string]vessel.Pose{"bucket": {}}})
	idle(s, 2*s.TickRateHz())

	fillAtTap(s, "cup")
	s.Step(Input{Overlaps: []Overlap{enter("well", "cup")}})
	s.Step(Input{Poses: map[string]vessel.Pose{"cup": tilted()}})

	sum := s.Summary()
	h := sum.History
	if h.DrawCount != 2 || h.FarmCount != 1 || h.DrinkCount != 1 || sum.Tasks != 4 {
		t.Fatalf("history: %+v", h)
	}
	if h.WaterDrawn != 90 || h.WaterUsedForFarming != 80 || h.WaterUsedForDrinking != 10 {
		t.Fatalf("volumes: %+v", h)
	}
	if sum.State != ledger.StateActive {
		t.Fatalf("state: %s", sum.State)
	}
	// 100 - 10 (draw) - 15 (farm) - 10 (draw) + 10 (safe drink)
	if got := sum.Gauges.Stamina; got != 75 {
		t.Fatalf("stamina: got %v want 75", got)
	}
}

func TestSession_PourDeferredAfterFillSameTick(t *testing.T) {
	s := newSession(t, tuning.Defaults())
	s.Step(Input{Overlaps: []Overlap{enter("tap", "bucket")}, Poses: map[string]vessel.Pose{"bucket": tilted()}})

	res := s.Step(Input{Buttons: []string{"trigger"}})
	if s.Vessel("bucket").Amount() != 80 {
		t.Fatalf("tap did not fill")
	}
	if hasEvent(res, EventPour) {
		t.Fatalf("vessel filled this tick also poured: %+v", res.Events)
	}

	res = s.Step(Input{})
	if !hasEvent(res, EventPour) || !hasEvent(res, EventSpill) {
		t.Fatalf("deferred pour missing: %+v", res.Events)
	}
	if s.Vessel("bucket").HasWater() {
		t.Fatalf("bucket still holds water after the pour")
	}
	if s.Summary().History.WasteCount != 0 {
		t.Fatalf("spill booked as waste without auto_dispose_spills")
	}
}

func TestSession_AutoDisposeSpills(t *testing.T) {
	tune := tuning.Defaults()
	tune.AutoDisposeSpills = true
	s := newSession(t, tune)
	fillAtTap(s, "cup")
	res := s.Step(Input{Poses: map[string]vessel.Pose{"cup": tilted()}})
	var spill *Spill
	for _, e := range res.Events {
		if e.Type == EventSpill {
			spill = e.Spill
		}
	}
	if spill == nil || !spill.Disposed || spill.Amount != 10 {
		t.Fatalf("spill: %+v", spill)
	}
	if h := s.Summary().History; h.WasteCount != 1 || h.WaterWasted != 10 {
		t.Fatalf("history: %+v", h)
	}
}

func TestSession_EndsOnceAndSnapshots(t *testing.T) {
	tune := tuning.Defaults()
	tune.MaxTasks = 2
	sink := make(chan snapshot.SnapshotV1, 4)
	s, err := New(Config{Tuning: tune, SnapshotSink: sink})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.ID() == "" {
		t.Fatalf("no session id generated")
	}

	ends := 0
	step := func(in Input) {
		if s.Step(in).Ended() {
			ends++
		}
	}
	step(Input{Overlaps: []Overlap{enter("tap", "bucket")}})
	step(Input{Buttons: []string{"trigger"}})
	step(Input{Overlaps: []Overlap{exit("tap", "bucket"), enter("field", "bucket")}})
	step(Input{Poses: map[string]vessel.Pose{"bucket": tilted()}})
	if ends != 1 || !s.Ledger().Ended() {
		t.Fatalf("ends=%d state=%s", ends, s.Ledger().State())
	}
	select {
	case snap := <-sink:
		if !snap.Ended() || snap.Header.SessionID != s.ID() || snap.Ledger.FarmCount != 1 {
			t.Fatalf("end snapshot: %+v", snap)
		}
	default:
		t.Fatalf("no snapshot at session end")
	}

	idle(s, 2*s.TickRateHz())
	step(Input{Overlaps: []Overlap{enter("tap", "cup")}})
	step(Input{Buttons: []string{"trigger"}})
	if ends != 1 {
		t.Fatalf("end fired again: %d", ends)
	}
	if s.Summary().Tasks != 3 {
		t.Fatalf("records after end must still apply: %+v", s.Summary())
	}
}

func TestSession_BadComponentsAreDisabled(t *testing.T) {
	tune := tuning.Defaults()
	tune.Sites = append(tune.Sites,
		tuning.SiteSpec{ID: "pond", Kind: "FIELD", Condition: "WAVE"},
		tuning.SiteSpec{ID: "tap2", Kind: "TAP", Condition: "TILT_DETECTION"},
		tuning.SiteSpec{ID: "field", Kind: "FIELD"},
	)
	tune.Vessels = append(tune.Vessels, tuning.VesselSpec{ID: "jug", Kind: "JUG"})
	s := newSession(t, tune)

	diags := s.Diagnostics()
	if len(diags) != 4 {
		t.Fatalf("diagnostics: %+v", diags)
	}
	want := map[string]bool{"pond": true, "tap2": true, "field": true, "jug": true}
	for _, d := range diags {
		if !want[d.Component] {
			t.Fatalf("unexpected diagnostic %+v", d)
		}
	}
	if got := len(s.Status().Sites); got != 5 {
		t.Fatalf("sites in scene: %d", got)
	}

	res := s.Step(Input{Overlaps: []Overlap{enter("pond", "bucket"), enter("field", "jug")}})
	if n := len(res.Events); n != 2 {
		t.Fatalf("expected two diagnostic events, got %+v", res.Events)
	}
	fillAtTap(s, "bucket")
	if s.Vessel("bucket").Amount() != 80 {
		t.Fatalf("session did not keep running")
	}
}

func TestSession_TransferBetweenVessels(t *testing.T) {
	s := newSession(t, tuning.Defaults())
	fillAtTap(s, "bucket")
	s.Step(Input{Overlaps: []Overlap{enter(TransferID("bucket"), "cup")}})

	res := s.Step(Input{Poses: map[string]vessel.Pose{"cup": tilted()}})
	if !hasEvent(res, EventTransfer) {
		t.Fatalf("no transfer: %+v", res.Events)
	}
	if hasEvent(res, EventPour) {
		t.Fatalf("vessel in a transfer also poured: %+v", res.Events)
	}
	s.Step(Input{Poses: map[string]vessel.Pose{"cup": {}}})
	if b, c := s.Vessel("bucket").Amount(), s.Vessel("cup").Amount(); b != 75 || c != 5 {
		t.Fatalf("bucket=%v cup=%v", b, c)
	}
	if tr := s.Transfer(TransferID("bucket")); tr == nil || tr.Count() != 1 {
		t.Fatalf("transfer state: %+v", tr)
	}
}

func TestSession_HeldTiltAfterTransferDoesNotPour(t *testing.T) {
	cases := []struct {
		name        string
		fill        string
		bucket, cup float64
	}{
		{name: "push", fill: "bucket", bucket: 75, cup: 5},
		{name: "pull", fill: "cup", bucket: 5, cup: 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t, tuning.Defaults())
			fillAtTap(s, tc.fill)
			s.Step(Input{Overlaps: []Overlap{enter(TransferID("bucket"), "cup")}})

			transfers := 0
			for i := 0; i < 4; i++ {
				res := s.Step(Input{Poses: map[string]vessel.Pose{"cup": tilted()}})
				if hasEvent(res, EventTransfer) {
					transfers++
				}
				if hasEvent(res, EventPour) || hasEvent(res, EventSpill) {
					t.Fatalf("tick %d: held tilt poured after the transfer: %+v", i, res.Events)
				}
			}
			if transfers != 1 {
				t.Fatalf("transfers: got %d want 1", transfers)
			}
			if b, c := s.Vessel("bucket").Amount(), s.Vessel("cup").Amount(); b != tc.bucket || c != tc.cup {
				t.Fatalf("bucket=%v cup=%v", b, c)
			}

			// Straightening and tilting again is a new gesture.
			s.Step(Input{Poses: map[string]vessel.Pose{"cup": {}}, Overlaps: []Overlap{exit(TransferID("bucket"), "cup")}})
			res := s.Step(Input{Poses: map[string]vessel.Pose{"cup": tilted()}})
			if !hasEvent(res, EventPour) || s.Vessel("cup").HasWater() {
				t.Fatalf("second tilt did not pour: %+v", res.Events)
			}
		})
	}
}

func TestSession_DisposalTakesEveryVesselInside(t *testing.T) {
	s := newSession(t, tuning.Defaults())
	fillAtTap(s, "bucket")
	idle(s, 2*s.TickRateHz())
	fillAtTap(s, "cup")
	s.Step(Input{Overlaps: []Overlap{enter("drain", "bucket"), enter("drain", "cup")}})

	res := s.Step(Input{Poses: map[string]vessel.Pose{"cup": tilted()}})
	if hasEvent(res, EventSpill) || !hasEvent(res, EventTask) {
		t.Fatalf("cup pour in the drain: %+v", res.Events)
	}
	res = s.Step(Input{Poses: map[string]vessel.Pose{"bucket": tilted()}})
	if hasEvent(res, EventSpill) || !hasEvent(res, EventTask) {
		t.Fatalf("bucket pour in the drain: %+v", res.Events)
	}
	if h := s.Summary().History; h.WasteCount != 2 || h.WaterWasted != 90 {
		t.Fatalf("history: %+v", h)
	}
	var drain SiteStatus
	for _, ss := range s.Status().Sites {
		if ss.ID == "drain" {
			drain = ss
		}
	}
	if drain.State != "ARMED" || drain.Target != "bucket,cup" {
		t.Fatalf("drain status: %+v", drain)
	}
}

func TestSession_SnapshotRoundTrip(t *testing.T) {
	src := newSession(t, tuning.Defaults())
	fillAtTap(src, "bucket")
	src.Step(Input{Overlaps: []Overlap{enter("field", "bucket")}})
	src.Step(Input{Poses: map[string]vessel.Pose{"bucket": tilted()}})
	src.Step(Input{Overlaps: []Overlap{exit("field", "bucket")}, Poses: map[string]vessel.Pose{"bucket": {}}})
	idle(src, 2*src.TickRateHz())
	fillAtTap(src, "cup")

	snap := src.ExportSnapshot()
	snap.Vessels = append(snap.Vessels, snapshot.VesselV1{ID: "ghost", Kind: "CUP", Capacity: 10})

	dst := newSession(t, tuning.Defaults())
	if err := dst.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if dst.Summary() != src.Summary() || dst.Tick() != src.Tick() {
		t.Fatalf("summary mismatch:\n%+v\n%+v", dst.Summary(), src.Summary())
	}
	if !dst.Site("field").Gate().Completed() || dst.Vessel("cup").Amount() != 10 {
		t.Fatalf("scene state not restored")
	}
	if len(dst.Diagnostics()) != 1 {
		t.Fatalf("missing diagnostic for unknown vessel: %+v", dst.Diagnostics())
	}

	// The restored one-shot field must not fire again.
	dst.Step(Input{Overlaps: []Overlap{enter("tap", "bucket")}})
	dst.Step(Input{Buttons: []string{"trigger"}})
	dst.Step(Input{Overlaps: []Overlap{exit("tap", "bucket"), enter("field", "bucket")}})
	dst.Step(Input{Poses: map[string]vessel.Pose{"bucket": tilted()}})
	if got := dst.Summary().History.FarmCount; got != 1 {
		t.Fatalf("restored field fired again: farm count %d", got)
	}

	bad := snap
	bad.Header.Version = 7
	if err := dst.ImportSnapshot(bad); err == nil {
		t.Fatalf("unknown snapshot version accepted")
	}
}

func TestSession_ResetStartsOver(t *testing.T) {
	s := newSession(t, tuning.Defaults())
	fillAtTap(s, "bucket")
	s.Step(Input{Overlaps: []Overlap{enter("field", "bucket")}})
	s.Step(Input{Poses: map[string]vessel.Pose{"bucket": tilted()}})

	old := s.ID()
	id := s.Reset()
	if id == old || s.ID() != id {
		t.Fatalf("reset kept session id %q", id)
	}
	if s.Tick() != 0 || s.Summary().Tasks != 0 || s.Summary().Gauges.Stamina != 100 {
		t.Fatalf("ledger not reset: %+v", s.Summary())
	}
	field := s.Site("field").Gate()
	if field.Completed() || field.State() != gate.Armed {
		t.Fatalf("field after reset: completed=%v state=%v", field.Completed(), field.State())
	}
	if s.Scheduler().Len() != 0 {
		t.Fatalf("pending effects survived reset")
	}
}

func TestSession_VisualSignals(t *testing.T) {
	ctrl := gomock.NewController(t)
	visual := mocks.NewMockVisualSink(ctrl)
	visual.EXPECT().SetSiteState(gomock.Any(), effects.SiteBefore).AnyTimes()
	visual.EXPECT().SetVesselState("bucket", vessel.StateFull).Times(1)
	visual.EXPECT().SetVesselState("bucket", vessel.StateEmpty).Times(1)
	visual.EXPECT().SetSiteState("field", effects.SiteAfter).Times(1)

	s, err := New(Config{Tuning: tuning.Defaults(), Visual: visual})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	fillAtTap(s, "bucket")
	s.Step(Input{Overlaps: []Overlap{enter("field", "bucket")}})
	s.Step(Input{Poses: map[string]vessel.Pose{"bucket": tilted()}})
}

func TestSession_RunLoop(t *testing.T) {
	tune := tuning.Defaults()
	tune.TickRateHz = 200
	published := make(chan StepResult, 4096)
	s, err := New(Config{Tuning: tune, Publish: func(r StepResult) {
		select {
		case published <- r:
		default:
		}
	}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	if !s.Submit(Input{Overlaps: []Overlap{enter("tap", "bucket")}, Buttons: []string{"trigger"}}) {
		t.Fatalf("submit dropped")
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		st, err := s.RequestStatus(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if len(st.Vessels) > 0 && st.Vessels[0].Amount == 80 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("bucket never filled: %+v", st.Vessels)
		}
		time.Sleep(5 * time.Millisecond)
	}

	first := (<-published).SessionID
	id, err := s.RequestReset(ctx)
	if err != nil || id == first {
		t.Fatalf("reset: id=%q err=%v", id, err)
	}
	st, err := s.RequestStatus(ctx)
	if err != nil || st.SessionID != id || st.Vessels[0].Amount != 0 {
		t.Fatalf("status after reset: %+v %v", st, err)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
