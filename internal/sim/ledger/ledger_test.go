package ledger

import "testing"

func TestHygiene_Boundaries(t *testing.T) {
	if got := Hygiene(History{}); got != 100 {
		t.Fatalf("empty history hygiene: got %v want 100", got)
	}
	safe := History{WaterUsedForDrinking: 40, WaterUsedForFarming: 60}
	if got := Hygiene(safe); got != 100 {
		t.Fatalf("all-safe hygiene: got %v want 100", got)
	}
	unsafe := History{WaterUsedForDrinking: 40, WaterUsedForFarming: 60, UnsafeDrinking: 40}
	if got := Hygiene(unsafe); got != 60 {
		t.Fatalf("unsafe hygiene: got %v want 60", got)
	}
}

func TestEfficiency_ExcludesWaste(t *testing.T) {
	if got := Efficiency(History{}); got != 0 {
		t.Fatalf("no draws: got %v want 0", got)
	}
	h := History{WaterDrawn: 200, WaterUsedForDrinking: 10, WaterUsedForFarming: 80, WaterUsedForWashing: 10, WaterWasted: 80}
	if got := Efficiency(h); got != 50 {
		t.Fatalf("efficiency: got %v want 50", got)
	}
}

func TestRecordDrink_UnsafeFeedsHygiene(t *testing.T) {
	l := New(Config{MaxTasks: 10})
	l.RecordFarm(Source{}, 60, 5, 15)
	l.RecordDrink(Source{}, 40, 30, false, 10, 10)

	h := l.History()
	if h.UnsafeDrinking != 40 || h.DrinkCount != 1 {
		t.Fatalf("history: %+v", h)
	}
	if got := l.Hygiene(); got != 60 {
		t.Fatalf("hygiene: got %v want 60", got)
	}
	if got := l.Gauges().Stamina; got != 75 {
		t.Fatalf("stamina: got %v want 75", got)
	}
	if h.StaminaSpent != 25 {
		t.Fatalf("stamina spent: got %v want 25", h.StaminaSpent)
	}
}

func TestGauges_ClampedToRange(t *testing.T) {
	l := New(Config{MaxTasks: 100})
	for i := 0; i < 3; i++ {
		l.RecordDraw(Source{}, 80, 100, 40)
	}
	g := l.Gauges()
	if g.WaterVolume != 100 || g.Stamina != 0 || g.WaterQuality != 100 {
		t.Fatalf("gauges not clamped: %+v", g)
	}
	l.RecordDrink(Source{}, 10, 95, true, 10, 10)
	if got := l.Gauges().Stamina; got != 10 {
		t.Fatalf("stamina after safe drink: got %v want 10", got)
	}
	l.RecordWaste(Source{}, 500, 0, 200, 0)
	g = l.Gauges()
	if g.WaterVolume != 0 || g.WaterQuality != 0 {
		t.Fatalf("gauges not clamped at zero: %+v", g)
	}
}

func TestSessionEnd_FiresOnce(t *testing.T) {
	l := New(Config{MaxTasks: 3})
	ends := 0
	var last Summary
	l.OnEnd(func(s Summary) {
		ends++
		last = s
	})
	var entries []Entry
	l.SetObserver(func(e Entry) { entries = append(entries, e) })

	l.RecordDraw(Source{Tick: 1}, 80, 100, 10)
	l.RecordFarm(Source{Tick: 2}, 80, 5, 15)
	if l.Ended() {
		t.Fatalf("ended early")
	}
	l.RecordDraw(Source{Tick: 3}, 10, 100, 10)
	l.RecordDrink(Source{Tick: 4}, 10, 100, true, 10, 10)
	l.RecordWaste(Source{Tick: 5}, 5, 50, 10, 2)

	if ends != 1 {
		t.Fatalf("end notifications: got %d want 1", ends)
	}
	if last.Tasks != 3 || last.State != StateEnded {
		t.Fatalf("summary at end: %+v", last)
	}
	if l.History().TotalTasksCompleted() != 5 {
		t.Fatalf("records after end must still apply, total=%d", l.History().TotalTasksCompleted())
	}
	if len(entries) != 5 || !entries[2].Ended || entries[3].Ended {
		t.Fatalf("entries: %+v", entries)
	}
	if entries[4].Seq != 5 || entries[4].Tick != 5 {
		t.Fatalf("entry sequencing: %+v", entries[4])
	}
}

func TestReset_RearmsEnd(t *testing.T) {
	l := New(Config{MaxTasks: 1})
	ends := 0
	l.OnEnd(func(Summary) { ends++ })
	l.RecordDraw(Source{}, 10, 100, 0)
	l.Reset()
	if l.Ended() || l.History().DrawCount != 0 || l.Gauges().Stamina != 100 {
		t.Fatalf("reset did not restore initial state: %+v", l.Summary())
	}
	l.RecordDraw(Source{}, 10, 100, 0)
	if ends != 2 {
		t.Fatalf("end notifications after reset: got %d want 2", ends)
	}
}

func TestCounters_MonotonicAcrossRecords(t *testing.T) {
	l := New(Config{MaxTasks: 100})
	prev := l.History()
	ops := []func(){
		func() { l.RecordDraw(Source{}, 80, 100, 10) },
		func() { l.RecordFarm(Source{}, -5, 5, -1) },
		func() { l.RecordDrink(Source{}, 10, 10, false, -3, 10) },
		func() { l.RecordLaundry(Source{}, 80, 3, 15) },
		func() { l.RecordWaste(Source{}, 5, 50, 10, 2) },
	}
	for i, op := range ops {
		op()
		h := l.History()
		if h.WaterDrawn < prev.WaterDrawn || h.WaterUsedForFarming < prev.WaterUsedForFarming ||
			h.StaminaSpent < prev.StaminaSpent || h.StaminaRecovered < prev.StaminaRecovered ||
			h.WaterPolluted < prev.WaterPolluted || h.TotalTasksCompleted() != prev.TotalTasksCompleted()+1 {
			t.Fatalf("op %d decreased a counter: before=%+v after=%+v", i, prev, h)
		}
		prev = h
	}
}
