package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"waterchores.dev/internal/persistence/archive"
	persistlog "waterchores.dev/internal/persistence/log"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/tuning"
)

func drawAtTap(t *testing.T, id string, maxTasks int) *session.Session {
	t.Helper()
	tune := tuning.Defaults()
	tune.MaxTasks = maxTasks
	s, err := session.New(session.Config{ID: id, Tuning: tune})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	s.Step(session.Input{
		Buttons:  []string{"trigger"},
		Overlaps: []session.Overlap{{Kind: session.OverlapEnter, Volume: "tap", Vessel: "bucket"}},
	})
	return s
}

func TestSnapshotWriter_ArchivesEndedSessions(t *testing.T) {
	dir := t.TempDir()
	w := snapshotWriter{dataDir: dir, log: log.New(io.Discard, "", 0)}

	running := drawAtTap(t, "running", 5)
	runningPath, err := w.persist(running.ExportSnapshot())
	if err != nil {
		t.Fatalf("persist running: %v", err)
	}
	if latestSnapshot(dir) != runningPath {
		t.Fatalf("latest = %q, want %q", latestSnapshot(dir), runningPath)
	}

	ended := drawAtTap(t, "ended", 1)
	if !ended.Ledger().Ended() {
		t.Fatalf("session should have ended after one task")
	}
	endedPath, err := w.persist(ended.ExportSnapshot())
	if err != nil {
		t.Fatalf("persist ended: %v", err)
	}
	// Make the ended snapshot the newest file on disk.
	later := mustModTime(t, runningPath).Add(2 * time.Second)
	if err := os.Chtimes(endedPath, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	metas, err := archive.List(dir)
	if err != nil || len(metas) != 1 || metas[0].SessionID != "ended" || metas[0].Tasks != 1 {
		t.Fatalf("archives=%+v err=%v", metas, err)
	}
	if got := latestSnapshot(dir); got != "" {
		t.Fatalf("an ended session must not be resumed, got %q", got)
	}
	if filepath.Dir(filepath.Dir(endedPath)) != sessionDir(dir, "ended") {
		t.Fatalf("snapshot path %q", endedPath)
	}
}

func TestTeeLogger_SplitsLedgerEntries(t *testing.T) {
	dir := t.TempDir()
	ticks := persistlog.NewTickLogger(dir, persistlog.Options{})
	entries := persistlog.NewLedgerLogger(dir, persistlog.Options{})
	tee := teeLogger{ticks: ticks, ledger: entries, log: log.New(io.Discard, "", 0)}

	e := ledger.Entry{Kind: ledger.EntryDraw, SiteID: "tap", VesselID: "bucket", Amount: 80, Quality: 100}
	_ = tee.WriteTick(session.TickLogEntry{SessionID: "s1", Tick: 1, Events: []session.Event{
		{Tick: 1, Type: session.EventTask, Entry: &e},
		{Tick: 1, Type: session.EventPour, Pour: &session.Pour{Vessel: "bucket", Amount: 80}},
	}})
	_ = tee.WriteTick(session.TickLogEntry{SessionID: "s1", Tick: 2})
	_ = ticks.Close()
	_ = entries.Close()

	n := 0
	if err := persistlog.ReadTickLog(dir, func(session.TickLogEntry) error { n++; return nil }); err != nil || n != 2 {
		t.Fatalf("ticks=%d err=%v", n, err)
	}
	files, err := persistlog.Files(filepath.Join(dir, "ledger"), "ledger")
	if err != nil || len(files) != 1 {
		t.Fatalf("ledger files=%v err=%v", files, err)
	}
	lines := 0
	_ = persistlog.ReadJSONL(files[0], func([]byte) error { lines++; return nil })
	if lines != 1 {
		t.Fatalf("ledger lines = %d", lines)
	}
}

func TestEnvConfig(t *testing.T) {
	t.Setenv("DEPLOY_ENV", "production")
	t.Setenv("WC_INDEX_BACKEND", "ingest")
	t.Setenv("WC_INDEX_FLUSH", "2s")
	t.Setenv("WC_MIRROR_ENABLED", "true")
	t.Setenv("WC_MIRROR_BUCKET", "chores")

	cfg, err := loadEnvConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.adminEnabled() {
		t.Fatalf("admin should default off in production")
	}
	if cfg.Index.Backend != "ingest" || cfg.Index.Flush.Seconds() != 2 || cfg.Index.BatchSize != 128 {
		t.Fatalf("index env: %+v", cfg.Index)
	}
	if !cfg.Mirror.Enabled || cfg.Mirror.Bucket != "chores" || cfg.Mirror.Region != "auto" {
		t.Fatalf("mirror env: %+v", cfg.Mirror)
	}
	if _, err := openRuntimeIndex(t.TempDir(), cfg, false, nil); err == nil {
		t.Fatalf("ingest without a URL should fail")
	}
	if _, err := openMirror(t.TempDir(), cfg.Mirror, nil); err == nil {
		t.Fatalf("mirror without credentials should fail")
	}

	t.Setenv("WC_ENABLE_ADMIN_HTTP", "true")
	cfg, _ = loadEnvConfig()
	if !cfg.adminEnabled() {
		t.Fatalf("explicit admin flag ignored")
	}
}

func mustModTime(t *testing.T, p string) time.Time {
	t.Helper()
	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	return info.ModTime()
}
