package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// sendMu orders sends against Close: senders hold it shared, Close
	// exclusively while it marks the index closed and closes ch.
	sendMu sync.RWMutex
	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	dropArchive  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqArchive
	reqTuning
)

type req struct {
	kind reqKind

	tick     session.TickLogEntry
	snapshot snapshotRow
	archive  archiveRow
	tuning   ingestTuningPayload
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Bursts of pours and transfers should never stall the session.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload of a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tuning (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			first_tick INTEGER NOT NULL,
			last_tick INTEGER NOT NULL,
			state TEXT NOT NULL DEFAULT 'ACTIVE',
			tasks INTEGER NOT NULL DEFAULT 0,
			max_tasks INTEGER NOT NULL DEFAULT 0,
			hygiene REAL,
			efficiency REAL,
			stamina REAL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			events INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			site_id TEXT,
			vessel_id TEXT,
			amount REAL NOT NULL,
			quality REAL NOT NULL,
			stamina_delta REAL NOT NULL,
			unsafe INTEGER NOT NULL,
			total_tasks INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind, session_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			state TEXT NOT NULL,
			tasks INTEGER NOT NULL,
			PRIMARY KEY (session_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS archives (
			session_id TEXT PRIMARY KEY,
			end_tick INTEGER NOT NULL,
			snapshot_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropArchiveTotal:  s.dropArchive.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry session.TickLogEntry) error {
	if s == nil || s.closed.Load() || !worthIndexing(entry) {
		return nil
	}
	// The JSONL tick log remains the source of truth.
	s.send(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	s.send(req{kind: reqSnapshot, snapshot: newSnapshotRow(path, snap)}, &s.dropSnapshot)
}

func (s *SQLiteIndex) RecordArchive(sessionID string, endTick uint64, archivedSnapshotPath string) {
	if s == nil || s.closed.Load() || sessionID == "" || archivedSnapshotPath == "" {
		return
	}
	r := archiveRow{
		SessionID:  sessionID,
		EndTick:    endTick,
		Path:       archivedSnapshotPath,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.send(req{kind: reqArchive, archive: r}, &s.dropArchive)
}

// send queues r, or counts it in drops when the queue is full. A nil drops
// counter makes the send blocking. It reports false once the index is closed.
func (s *SQLiteIndex) send(r req, drops *atomic.Uint64) bool {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return false
	}
	if drops == nil {
		s.ch <- r
		return true
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
	return true
}

// UpsertTuning stores the tuning the server actually applies, keyed by the
// digest of its canonical JSON. Unlike the other records it is never dropped.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, digest := tuningJSON(tune)
	ok := s.send(req{kind: reqTuning, tuning: ingestTuningPayload{
		Digest:    digest,
		JSON:      string(b),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, nil)
	if !ok {
		return fmt.Errorf("upsert tuning: index closed")
	}
	return nil
}

type statements struct {
	touchSession   *sql.Stmt
	setTasks       *sql.Stmt
	endSession     *sql.Stmt
	insertTick     *sql.Stmt
	insertEntry    *sql.Stmt
	insertSnapshot *sql.Stmt
	insertArchive  *sql.Stmt
	upsertTuning   *sql.Stmt
}

func (s *SQLiteIndex) prepare() (*statements, error) {
	var st statements
	var err error
	prep := func(dst **sql.Stmt, q string) {
		if err != nil {
			return
		}
		*dst, err = s.db.Prepare(q)
	}
	prep(&st.touchSession, `INSERT INTO sessions(session_id,first_tick,last_tick,updated_at) VALUES(?,?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET last_tick=MAX(last_tick, excluded.last_tick), updated_at=excluded.updated_at`)
	prep(&st.setTasks, `UPDATE sessions SET tasks=? WHERE session_id=?`)
	prep(&st.endSession, `UPDATE sessions SET state='ENDED', tasks=?, max_tasks=?, hygiene=?, efficiency=?, stamina=? WHERE session_id=?`)
	prep(&st.insertTick, `INSERT OR REPLACE INTO ticks(session_id,tick,events,raw_json) VALUES(?,?,?,?)`)
	prep(&st.insertEntry, `INSERT OR REPLACE INTO entries(session_id,seq,tick,kind,site_id,vessel_id,amount,quality,stamina_delta,unsafe,total_tasks) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	prep(&st.insertSnapshot, `INSERT OR REPLACE INTO snapshots(session_id,tick,path,state,tasks) VALUES(?,?,?,?,?)`)
	prep(&st.insertArchive, `INSERT OR REPLACE INTO archives(session_id,end_tick,snapshot_path,recorded_at) VALUES(?,?,?,?)`)
	prep(&st.upsertTuning, `INSERT OR REPLACE INTO tuning(digest,json,updated_at) VALUES(?,?,?)`)
	if err != nil {
		st.close()
		return nil, err
	}
	return &st, nil
}

func (st *statements) close() {
	for _, s := range []*sql.Stmt{st.touchSession, st.setTasks, st.endSession, st.insertTick, st.insertEntry, st.insertSnapshot, st.insertArchive, st.upsertTuning} {
		if s != nil {
			_ = s.Close()
		}
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	st, err := s.prepare()
	if err != nil {
		// Without statements nothing can be indexed; drain so writers never block.
		for range s.ch {
		}
		return
	}
	defer st.close()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		var ok bool
		select {
		case r, ok = <-s.ch:
			if !ok {
				commit()
				return
			}
		case <-ticker.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		var err error
		switch r.kind {
		case reqTick:
			err = writeTick(tx, st, r.tick)
		case reqSnapshot:
			sn := r.snapshot
			_, err = tx.Stmt(st.insertSnapshot).Exec(sn.SessionID, int64(sn.Tick), sn.Path, sn.State, sn.Tasks)
		case reqArchive:
			a := r.archive
			_, err = tx.Stmt(st.insertArchive).Exec(a.SessionID, int64(a.EndTick), a.Path, a.RecordedAt)
		case reqTuning:
			tu := r.tuning
			_, err = tx.Stmt(st.upsertTuning).Exec(tu.Digest, tu.JSON, tu.UpdatedAt)
		}
		if err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery {
			commit()
		}
	}
}

func writeTick(tx *sql.Tx, st *statements, e session.TickLogEntry) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Stmt(st.touchSession).Exec(e.SessionID, int64(e.Tick), int64(e.Tick), now); err != nil {
		return err
	}
	raw, _ := json.Marshal(e)
	if _, err := tx.Stmt(st.insertTick).Exec(e.SessionID, int64(e.Tick), len(e.Events), string(raw)); err != nil {
		return err
	}
	for _, ev := range e.Events {
		switch {
		case ev.Type == session.EventTask && ev.Entry != nil:
			r := newEntryRow(e.SessionID, *ev.Entry)
			if _, err := tx.Stmt(st.insertEntry).Exec(
				r.SessionID,
				int64(r.Seq),
				int64(r.Tick),
				r.Kind,
				r.SiteID,
				r.VesselID,
				r.Amount,
				r.Quality,
				r.StaminaDelta,
				r.Unsafe,
				r.TotalTasks,
			); err != nil {
				return err
			}
			if _, err := tx.Stmt(st.setTasks).Exec(r.TotalTasks, e.SessionID); err != nil {
				return err
			}
		case ev.Type == session.EventEnded && ev.Summary != nil:
			o := newOutcomeRow(e.SessionID, e.Tick, *ev.Summary)
			if _, err := tx.Stmt(st.endSession).Exec(o.Tasks, o.MaxTasks, o.Hygiene, o.Efficiency, o.Stamina, o.SessionID); err != nil {
				return err
			}
		}
	}
	return nil
}
