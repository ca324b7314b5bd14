package effects

import (
	"testing"
	"time"
)

func TestScheduler_RunsDueInOrder(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.After(0, 2*time.Second, "tap", func() { order = append(order, "tap") })
	s.After(0, time.Second, "transfer", func() { order = append(order, "transfer") })

	if n := s.Advance(500 * time.Millisecond); n != 0 {
		t.Fatalf("nothing should be due yet, ran %d", n)
	}
	s.Advance(3 * time.Second)
	if len(order) != 2 || order[0] != "transfer" || order[1] != "tap" {
		t.Fatalf("order: %v", order)
	}
	if s.Len() != 0 {
		t.Fatalf("scheduler not drained: %d", s.Len())
	}
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s := NewScheduler()
	calls := 0
	s.After(0, time.Second, "tap", func() { calls++ })
	s.After(0, 5*time.Second, "tap", func() { calls += 10 })
	s.Advance(2 * time.Second)
	if calls != 0 {
		t.Fatalf("replaced callback ran")
	}
	s.Advance(5 * time.Second)
	if calls != 10 {
		t.Fatalf("calls: got %d want 10", calls)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler()
	ran := false
	s.After(0, time.Second, "tap", func() { ran = true })
	if !s.Cancel("tap") {
		t.Fatalf("cancel of pending id returned false")
	}
	if s.Cancel("tap") {
		t.Fatalf("second cancel returned true")
	}
	s.Advance(time.Minute)
	if ran {
		t.Fatalf("cancelled callback ran")
	}
}
