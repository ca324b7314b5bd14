// Package indexdb keeps a queryable read model of sessions next to the
// JSONL tick log: ledger entries, session outcomes, snapshots and archives.
// Writers never block the session; when a queue is full the record is
// dropped and counted, the tick log stays the source of truth.
package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/tuning"
)

// Index is implemented by every backend.
type Index interface {
	session.TickLogger
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordArchive(sessionID string, endTick uint64, archivedSnapshotPath string)
	UpsertTuning(tune tuning.Tuning) error
	Stats() Stats
	Close() error
}

type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	DropArchiveTotal  uint64 `json:"drop_archive_total"`

	// Remote backends only.
	FlushFailTotal    uint64 `json:"flush_fail_total,omitempty"`
	QueueDroppedTotal uint64 `json:"queue_dropped_total,omitempty"`
}

type entryRow struct {
	SessionID    string  `json:"session_id"`
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

type outcomeRow struct {
	SessionID  string  `json:"session_id"`
	Tick       uint64  `json:"tick"`
	Tasks      int     `json:"tasks"`
	MaxTasks   int     `json:"max_tasks"`
	Hygiene    float64 `json:"hygiene"`
	Efficiency float64 `json:"efficiency"`
	Stamina    float64 `json:"stamina"`
}

type snapshotRow struct {
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`
	Path      string `json:"path"`
	State     string `json:"state"`
	Tasks     int    `json:"tasks"`
}

type archiveRow struct {
	SessionID  string `json:"session_id"`
	EndTick    uint64 `json:"end_tick"`
	Path       string `json:"path"`
	RecordedAt string `json:"recorded_at"`
}

func newEntryRow(sessionID string, e ledger.Entry) entryRow {
	return entryRow{
		SessionID:    sessionID,
		Seq:          e.Seq,
		Tick:         e.Tick,
		Kind:         string(e.Kind),
		SiteID:       e.SiteID,
		VesselID:     e.VesselID,
		Amount:       e.Amount,
		Quality:      e.Quality,
		StaminaDelta: e.StaminaDelta,
		Unsafe:       e.Unsafe,
		TotalTasks:   e.TotalTasks,
	}
}

func newOutcomeRow(sessionID string, tick uint64, s ledger.Summary) outcomeRow {
	return outcomeRow{
		SessionID:  sessionID,
		Tick:       tick,
		Tasks:      s.Tasks,
		MaxTasks:   s.MaxTasks,
		Hygiene:    s.Hygiene,
		Efficiency: s.Efficiency,
		Stamina:    s.Gauges.Stamina,
	}
}

func newSnapshotRow(path string, snap snapshot.SnapshotV1) snapshotRow {
	return snapshotRow{
		SessionID: snap.Header.SessionID,
		Tick:      snap.Header.Tick,
		Path:      path,
		State:     snap.Ledger.State,
		Tasks:     snap.Ledger.Tasks(),
	}
}

// worthIndexing skips idle ticks: no input and nothing happened.
func worthIndexing(e session.TickLogEntry) bool {
	return len(e.Events) > 0 || !e.Input.Empty()
}

func tuningJSON(tune tuning.Tuning) (data []byte, digest string) {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return b, hex.EncodeToString(sum[:])
}
