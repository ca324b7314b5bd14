package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/tuning"
)

// IngestConfig points the index at a remote HTTP ingest endpoint that accepts
// batches of {"events":[...]}.
type IngestConfig struct {
	Endpoint      string
	Token         string
	ServerID      string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxRetained bounds the events kept across failed flushes.
	MaxRetained int
	Logger      *log.Logger
}

type IngestIndex struct {
	cfg        IngestConfig
	httpClient *http.Client

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	sendMu sync.RWMutex
	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	dropArchive  atomic.Uint64
	flushFail    atomic.Uint64
	retainedDrop atomic.Uint64
}

type ingestEvent struct {
	Kind     string `json:"kind"`
	ServerID string `json:"server_id"`
	Payload  any    `json:"payload"`
}

type ingestTuningPayload struct {
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func OpenIngest(cfg IngestConfig) (*IngestIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.ServerID = strings.TrimSpace(cfg.ServerID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("empty server id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 16 * cfg.BatchSize
	}

	d := &IngestIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan ingestEvent, 16384),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *IngestIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.sendMu.Lock()
		d.closed.Store(true)
		close(d.ch)
		d.sendMu.Unlock()
		d.wg.Wait()
	})
	return nil
}

func (d *IngestIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(d.ch),
		QueueCapacity:     cap(d.ch),
		DropTickTotal:     d.dropTick.Load(),
		DropSnapshotTotal: d.dropSnapshot.Load(),
		DropArchiveTotal:  d.dropArchive.Load(),
		FlushFailTotal:    d.flushFail.Load(),
		QueueDroppedTotal: d.retainedDrop.Load(),
	}
}

// WriteTick sends the ledger entries and the session outcome; raw inputs
// stay in the local tick log.
func (d *IngestIndex) WriteTick(entry session.TickLogEntry) error {
	if d == nil || d.closed.Load() || !worthIndexing(entry) {
		return nil
	}
	for _, ev := range entry.Events {
		switch {
		case ev.Type == session.EventTask && ev.Entry != nil:
			d.enqueue(ingestEvent{Kind: "entry", Payload: newEntryRow(entry.SessionID, *ev.Entry)}, &d.dropTick)
		case ev.Type == session.EventEnded && ev.Summary != nil:
			d.enqueue(ingestEvent{Kind: "outcome", Payload: newOutcomeRow(entry.SessionID, entry.Tick, *ev.Summary)}, &d.dropTick)
		case ev.Type == session.EventReset:
			d.enqueue(ingestEvent{Kind: "session", Payload: map[string]string{"session_id": entry.SessionID}}, &d.dropTick)
		}
	}
	return nil
}

func (d *IngestIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(ingestEvent{Kind: "snapshot", Payload: newSnapshotRow(path, snap)}, &d.dropSnapshot)
}

func (d *IngestIndex) RecordArchive(sessionID string, endTick uint64, archivedSnapshotPath string) {
	if d == nil || d.closed.Load() || sessionID == "" || archivedSnapshotPath == "" {
		return
	}
	d.enqueue(ingestEvent{Kind: "archive", Payload: archiveRow{
		SessionID:  sessionID,
		EndTick:    endTick,
		Path:       archivedSnapshotPath,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, &d.dropArchive)
}

func (d *IngestIndex) UpsertTuning(tune tuning.Tuning) error {
	if d == nil {
		return nil
	}
	b, digest := tuningJSON(tune)
	d.enqueue(ingestEvent{Kind: "tuning", Payload: ingestTuningPayload{
		Digest:    digest,
		JSON:      string(b),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, &d.dropSnapshot)
	return nil
}

func (d *IngestIndex) enqueue(ev ingestEvent, drops *atomic.Uint64) {
	if d == nil {
		return
	}
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed.Load() {
		return
	}
	ev.ServerID = d.cfg.ServerID
	select {
	case d.ch <- ev:
	default:
		drops.Add(1)
		d.printf("ingest queue full; drop kind=%s", ev.Kind)
	}
}

// loop batches events. A failed batch is kept and retried on the next flush,
// up to MaxRetained events; the oldest are dropped beyond that.
func (d *IngestIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]ingestEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("ingest flush failed batch=%d err=%v", len(batch), err)
			if over := len(batch) - d.cfg.MaxRetained; over > 0 {
				d.retainedDrop.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *IngestIndex) sendBatch(events []ingestEvent) error {
	body := struct {
		Events []ingestEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("x-wc-index-token", d.cfg.Token)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (d *IngestIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
