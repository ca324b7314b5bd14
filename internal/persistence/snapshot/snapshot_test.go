package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := Path(filepath.Join(dir, "snapshots"), 42)
	in := SnapshotV1{
		Header:   Header{Version: Version, SessionID: "s-1", Tick: 42},
		TickRate: 30,
		MaxTasks: 5,
		Ledger:   LedgerV1{State: "ENDED", Seq: 5, Stamina: 55, WaterDrawn: 160, DrawCount: 2, FarmCount: 1},
		Vessels:  []VesselV1{{ID: "bucket", Kind: "BUCKET", Capacity: 80, Amount: 12.5, Quality: 90}},
		Sites:    []SiteV1{{ID: "laundry", Kind: "LAUNDRY", Completed: true, Dirt: 80}},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header != in.Header || out.Ledger != in.Ledger || !out.Ended() {
		t.Fatalf("snapshot mismatch: %+v", out)
	}
	if len(out.Vessels) != 1 || out.Vessels[0] != in.Vessels[0] || out.Sites[0] != in.Sites[0] {
		t.Fatalf("scene mismatch: %+v %+v", out.Vessels, out.Sites)
	}

	h, err := ReadHeader(path)
	if err != nil || h.Tick != 42 || h.SessionID != "s-1" {
		t.Fatalf("header: %+v %v", h, err)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 9, Tick: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Fatalf("missing file: %v", err)
	}
}
