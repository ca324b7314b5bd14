package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

// Reader runs read-only queries against an index file written by
// SQLiteIndex. It is safe to use while the server is writing (WAL).
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type SessionRow struct {
	SessionID  string   `json:"session_id"`
	FirstTick  uint64   `json:"first_tick"`
	LastTick   uint64   `json:"last_tick"`
	State      string   `json:"state"`
	Tasks      int      `json:"tasks"`
	MaxTasks   int      `json:"max_tasks"`
	Hygiene    *float64 `json:"hygiene,omitempty"`
	Efficiency *float64 `json:"efficiency,omitempty"`
	Stamina    *float64 `json:"stamina,omitempty"`
	UpdatedAt  string   `json:"updated_at"`
}

type EntryRow struct {
	Seq          uint64  `json:"seq"`
	Tick         uint64  `json:"tick"`
	Kind         string  `json:"kind"`
	SiteID       string  `json:"site_id,omitempty"`
	VesselID     string  `json:"vessel_id,omitempty"`
	Amount       float64 `json:"amount"`
	Quality      float64 `json:"quality"`
	StaminaDelta float64 `json:"stamina_delta"`
	Unsafe       bool    `json:"unsafe,omitempty"`
	TotalTasks   int     `json:"total_tasks"`
}

type SnapshotRow struct {
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`
	Path      string `json:"path"`
	State     string `json:"state"`
	Tasks     int    `json:"tasks"`
}

type KindTotal struct {
	Kind   string  `json:"kind"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Sessions lists the most recently updated sessions first.
func (r *Reader) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT session_id,first_tick,last_tick,state,tasks,max_tasks,hygiene,efficiency,stamina,updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	var out []SessionRow
	for rows.Next() {
		var s SessionRow
		var first, last int64
		if err := rows.Scan(&s.SessionID, &first, &last, &s.State, &s.Tasks, &s.MaxTasks, &s.Hygiene, &s.Efficiency, &s.Stamina, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.FirstTick, s.LastTick = uint64(first), uint64(last)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Entries returns the ledger entries of a session in sequence order. An
// empty kind matches every kind.
func (r *Reader) Entries(ctx context.Context, sessionID, kind string, limit int) ([]EntryRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `SELECT seq,tick,kind,COALESCE(site_id,''),COALESCE(vessel_id,''),amount,quality,stamina_delta,unsafe,total_tasks
		FROM entries WHERE session_id=? AND (?='' OR kind=?) ORDER BY seq LIMIT ?`, sessionID, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	var out []EntryRow
	for rows.Next() {
		var e EntryRow
		var seq, tick int64
		if err := rows.Scan(&seq, &tick, &e.Kind, &e.SiteID, &e.VesselID, &e.Amount, &e.Quality, &e.StaminaDelta, &e.Unsafe, &e.TotalTasks); err != nil {
			return nil, err
		}
		e.Seq, e.Tick = uint64(seq), uint64(tick)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Totals aggregates the entries of a session per task kind.
func (r *Reader) Totals(ctx context.Context, sessionID string) ([]KindTotal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind,COUNT(*),SUM(amount) FROM entries WHERE session_id=? GROUP BY kind ORDER BY kind`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()
	var out []KindTotal
	for rows.Next() {
		var k KindTotal
		if err := rows.Scan(&k.Kind, &k.Count, &k.Amount); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Snapshots lists the snapshots of a session, newest first.
func (r *Reader) Snapshots(ctx context.Context, sessionID string) ([]SnapshotRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT session_id,tick,path,state,tasks FROM snapshots WHERE session_id=? ORDER BY tick DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		var tick int64
		if err := rows.Scan(&s.SessionID, &tick, &s.Path, &s.State, &s.Tasks); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ArchivePath returns the archived end snapshot of a session, or "".
func (r *Reader) ArchivePath(ctx context.Context, sessionID string) (string, error) {
	var p string
	err := r.db.QueryRowContext(ctx, `SELECT snapshot_path FROM archives WHERE session_id=?`, sessionID).Scan(&p)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return p, err
}
