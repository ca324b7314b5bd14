package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"waterchores.dev/internal/persistence/archive"
	"waterchores.dev/internal/persistence/indexdb"
	persistlog "waterchores.dev/internal/persistence/log"
	"waterchores.dev/internal/persistence/mirror"
	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/session"
)

// teeLogger fans each tick out to the tick log, the ledger audit log and the
// index. Errors are logged; a failing sink never stalls the session.
type teeLogger struct {
	ticks  *persistlog.TickLogger
	ledger *persistlog.LedgerLogger
	index  indexdb.Index
	log    *log.Logger
}

func (t teeLogger) WriteTick(entry session.TickLogEntry) error {
	if t.ticks != nil {
		if err := t.ticks.WriteTick(entry); err != nil {
			t.log.Printf("tick log: %v", err)
		}
	}
	if t.ledger != nil {
		for _, ev := range entry.Events {
			if ev.Type != session.EventTask || ev.Entry == nil {
				continue
			}
			if err := t.ledger.WriteEntry(entry.SessionID, *ev.Entry); err != nil {
				t.log.Printf("ledger log: %v", err)
			}
		}
	}
	if t.index != nil {
		_ = t.index.WriteTick(entry)
	}
	return nil
}

type snapshotWriter struct {
	dataDir string
	index   indexdb.Index
	mirror  *mirror.Mirror
	log     *log.Logger
}

func sessionDir(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "sessions", sessionID)
}

// persist writes snap, indexes it, and archives it when the session ended.
func (w snapshotWriter) persist(snap snapshot.SnapshotV1) (string, error) {
	path := snapshot.Path(filepath.Join(sessionDir(w.dataDir, snap.Header.SessionID), "snapshots"), snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	w.mirror.Enqueue(path)
	if w.index != nil {
		w.index.RecordSnapshot(path, snap)
	}
	archived, ok, err := archive.ArchiveSessionSnapshot(w.dataDir, path, snap)
	if err != nil {
		w.log.Printf("archive session snapshot: %v", err)
		return path, nil
	}
	if ok {
		w.log.Printf("archived session=%s tick=%d", snap.Header.SessionID, snap.Header.Tick)
		if w.index != nil {
			w.index.RecordArchive(snap.Header.SessionID, snap.Header.Tick, archived)
		}
		w.mirror.Enqueue(archived)
		w.mirror.Enqueue(filepath.Join(filepath.Dir(archived), "meta.json"))
	}
	return path, nil
}

func (w snapshotWriter) run(ctx context.Context, ch <-chan snapshot.SnapshotV1) {
	for {
		select {
		case <-ctx.Done():
			// Drain what the session already handed over.
			for {
				select {
				case snap := <-ch:
					if _, err := w.persist(snap); err != nil {
						w.log.Printf("snapshot write: %v", err)
					}
				default:
					return
				}
			}
		case snap := <-ch:
			if _, err := w.persist(snap); err != nil {
				w.log.Printf("snapshot write: %v", err)
			}
		}
	}
}

// latestSnapshot finds the most recent snapshot of a session that has not
// ended, or "" when there is nothing to resume.
func latestSnapshot(dataDir string) string {
	sessions, err := os.ReadDir(filepath.Join(dataDir, "sessions"))
	if err != nil {
		return ""
	}
	var best string
	var bestMod int64
	for _, s := range sessions {
		if !s.IsDir() {
			continue
		}
		dir := filepath.Join(dataDir, "sessions", s.Name(), "snapshots")
		ents, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range ents {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
				best, bestMod = filepath.Join(dir, e.Name()), mod
			}
		}
	}
	if best == "" {
		return ""
	}
	if _, err := os.Stat(filepath.Join(archive.Dir(dataDir, filepath.Base(filepath.Dir(filepath.Dir(best)))), "meta.json")); err == nil {
		return ""
	}
	return best
}
