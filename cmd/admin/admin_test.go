package main

import (
	"context"
	"path/filepath"
	"testing"

	"waterchores.dev/internal/persistence/indexdb"
	persistlog "waterchores.dev/internal/persistence/log"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/session"
)

func TestRunQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e := ledger.Entry{Seq: 1, Tick: 4, Kind: ledger.EntryDraw, SiteID: "tap", VesselID: "cup", Amount: 10, Quality: 100, TotalTasks: 1}
	_ = idx.WriteTick(session.TickLogEntry{SessionID: "s1", Tick: 4, Events: []session.Event{{Tick: 4, Type: session.EventTask, Entry: &e}}})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	var out []any
	emit := func(v any) { out = append(out, v) }
	if err := runQuery(ctx, r, "entries", "s1", "draw", 10, emit); err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(out) != 1 || out[0].(indexdb.EntryRow).Kind != "DRAW" {
		t.Fatalf("entries: %+v", out)
	}
	if err := runQuery(ctx, r, "totals", "", "", 0, emit); err == nil {
		t.Fatalf("expected missing -session error")
	}
	if err := runQuery(ctx, r, "weather", "s1", "", 0, emit); err == nil {
		t.Fatalf("expected unknown query error")
	}
}

func TestDumpLedger_FiltersBySession(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewLedgerLogger(dir, persistlog.Options{})
	_ = l.WriteEntry("a", ledger.Entry{Kind: ledger.EntryDraw, Amount: 80})
	_ = l.WriteEntry("b", ledger.Entry{Kind: ledger.EntryDrink, Amount: 10})
	_ = l.WriteEntry("a", ledger.Entry{Kind: ledger.EntryFarm, Amount: 80})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var kinds []ledger.EntryKind
	n, err := dumpLedger(dir, "a", func(v any) { kinds = append(kinds, v.(persistlog.LedgerRecord).Entry.Kind) })
	if err != nil || n != 2 || kinds[1] != ledger.EntryFarm {
		t.Fatalf("n=%d kinds=%v err=%v", n, kinds, err)
	}
}
