package transfer

import (
	"math/rand"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"waterchores.dev/internal/sim/effects"
	"waterchores.dev/internal/sim/effects/mocks"
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/vessel"
)

func frame(g *vessel.Guard, tick uint64, now time.Duration) tickctx.Frame {
	g.Begin(tick)
	return tickctx.Frame{Tick: tick, Now: now, Guard: g}
}

func TestResolve_SinkFirst(t *testing.T) {
	self := vessel.New("bucket", vessel.KindBucket, 80)
	tr, err := New(Config{ID: "pour"}, self, Env{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	other := vessel.New("cup", vessel.KindCup, 10)

	if _, _, _, ok := tr.Resolve(other); ok {
		t.Fatalf("two empty vessels resolved a direction")
	}
	other.Fill(5, 100)
	self.Fill(20, 100)
	if _, _, dir, _ := tr.Resolve(other); dir != Pull {
		t.Fatalf("both could act: got %s want %s", dir, Pull)
	}
	self.FillToCapacity(100)
	if _, _, dir, _ := tr.Resolve(other); dir != Push {
		t.Fatalf("full self: got %s want %s", dir, Push)
	}
	other.FillToCapacity(100)
	if _, _, _, ok := tr.Resolve(other); ok {
		t.Fatalf("two full vessels resolved a direction")
	}
}

func TestExecute_ConservesWater(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	guard := vessel.NewGuard()
	zero := time.Duration(0)
	for i := 0; i < 200; i++ {
		self := vessel.New("a", vessel.KindBucket, 80)
		other := vessel.New("b", vessel.KindCup, 10)
		self.Fill(r.Float64()*80, r.Float64()*100)
		other.Fill(r.Float64()*10, r.Float64()*100)
		tr, _ := New(Config{ID: "t", Amount: 1 + r.Float64()*20, Duration: &zero}, self, Env{})

		before := self.Amount() + other.Amount()
		tr.Execute(frame(guard, uint64(i+1), 0), other)
		after := self.Amount() + other.Amount()
		if diff := before - after; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("iteration %d: total changed %.6f -> %.6f", i, before, after)
		}
		for _, v := range []*vessel.Vessel{self, other} {
			if v.Amount() < 0 || v.Amount() > v.MaxCapacity() {
				t.Fatalf("iteration %d: %v out of bounds", i, v)
			}
		}
	}
}

func TestExecute_ClampsToSinkSpace(t *testing.T) {
	self := vessel.New("bucket", vessel.KindBucket, 80)
	self.Fill(78, 100)
	other := vessel.New("cup", vessel.KindCup, 10)
	other.FillToCapacity(50)
	tr, _ := New(Config{ID: "t"}, self, Env{})
	if !tr.Execute(frame(vessel.NewGuard(), 1, 0), other) {
		t.Fatalf("transfer did not run")
	}
	if !self.IsFull() || other.Amount() != 8 {
		t.Fatalf("self=%v other=%v", self, other)
	}
}

func TestTilt_RunsEffectAndBlocksWhileRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	fx := mocks.NewMockEffectSink(ctrl)
	fx.EXPECT().StartEffect("t", DefaultDuration).Times(2)
	fx.EXPECT().StopEffect("t").Times(1)

	sched := effects.NewScheduler()
	var results []Result
	self := vessel.New("bucket", vessel.KindBucket, 80)
	self.FillToCapacity(100)
	tr, err := New(Config{ID: "t"}, self, Env{Effects: fx, Scheduler: sched, OnTransfer: func(r Result) { results = append(results, r) }})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if tr.Gate().Profile().Condition != gate.TiltDetection {
		t.Fatalf("default condition: %s", tr.Gate().Profile().Condition)
	}
	cup := vessel.New("cup", vessel.KindCup, 10)
	guard := vessel.NewGuard()

	tr.Gate().Enter(frame(guard, 1, 0), cup)
	cup.Pose = vessel.Pose{Pitch: 70}
	if !tr.Gate().Tick(frame(guard, 2, 100*time.Millisecond)) {
		t.Fatalf("tilt did not transfer")
	}
	cup.Pose = vessel.Pose{}
	tr.Gate().Tick(frame(guard, 3, 200*time.Millisecond))
	cup.Pose = vessel.Pose{Pitch: 70}
	if tr.Gate().Tick(frame(guard, 4, 300*time.Millisecond)) {
		t.Fatalf("transferred while the previous stream was running")
	}
	sched.Advance(1200 * time.Millisecond)
	cup.Pose = vessel.Pose{}
	tr.Gate().Tick(frame(guard, 5, 1300*time.Millisecond))
	cup.Pose = vessel.Pose{Roll: 90}
	if !tr.Gate().Tick(frame(guard, 6, 1400*time.Millisecond)) {
		t.Fatalf("tilt after the stream ended did not transfer")
	}
	if len(results) != 2 || results[0].Direction != Push || results[0].Amount != DefaultAmount {
		t.Fatalf("results: %+v", results)
	}
	if cup.Amount() != 10 || self.Amount() != 70 || tr.Moved() != 10 {
		t.Fatalf("cup=%v self=%v moved=%v", cup, self, tr.Moved())
	}
}

func TestExecute_RequiresBothVesselsUnclaimed(t *testing.T) {
	self := vessel.New("bucket", vessel.KindBucket, 80)
	self.FillToCapacity(100)
	cup := vessel.New("cup", vessel.KindCup, 10)
	tr, _ := New(Config{ID: "t"}, self, Env{})
	fr := frame(vessel.NewGuard(), 1, 0)
	fr.Guard.Claim("tap", cup)
	if tr.Execute(fr, cup) {
		t.Fatalf("transfer ran on a vessel already mutated this tick")
	}
	if self.Amount() != 80 || cup.HasWater() {
		t.Fatalf("vessels changed: self=%v cup=%v", self, cup)
	}
}

func TestNew_SelfIsNeverTarget(t *testing.T) {
	self := vessel.New("bucket", vessel.KindBucket, 80)
	tr, _ := New(Config{ID: "t", Condition: gate.CollisionDetection}, self, Env{})
	if tr.Gate().Enter(frame(vessel.NewGuard(), 1, 0), self) || tr.Gate().Target() != nil {
		t.Fatalf("transfer targeted its own vessel")
	}
	if _, err := New(Config{ID: "t"}, nil, Env{}); err == nil {
		t.Fatalf("transfer without a vessel accepted")
	}
}
