package diag

import (
	"fmt"
	"testing"
)

func TestConfigurationError_Unwraps(t *testing.T) {
	err := fmt.Errorf("scene: %w", Configf("field_1", "no overlap volume assigned"))
	if !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if IsConfiguration(fmt.Errorf("plain")) {
		t.Fatalf("plain error classified as configuration")
	}
}

func TestLog_CapsEntries(t *testing.T) {
	l := NewLog(2)
	l.Add(1, "a", "one")
	l.AddError(2, Configf("b", "two"))
	l.AddError(3, fmt.Errorf("three"))
	got := l.Entries()
	if len(got) != 2 || got[0].Component != "b" || got[1].Message != "three" {
		t.Fatalf("entries: %+v", got)
	}
	if l.Dropped() != 1 {
		t.Fatalf("dropped: got %d want 1", l.Dropped())
	}
}
