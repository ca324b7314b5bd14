package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate  int   `json:"tick_rate_hz"`
	ElapsedMS int64 `json:"elapsed_ms"`
	MaxTasks  int   `json:"max_tasks"`

	Ledger    LedgerV1     `json:"ledger"`
	Vessels   []VesselV1   `json:"vessels"`
	Sites     []SiteV1     `json:"sites"`
	Transfers []TransferV1 `json:"transfers,omitempty"`

	Diagnostics []DiagnosticV1 `json:"diagnostics,omitempty"`
}

type LedgerV1 struct {
	State string `json:"state"`
	Seq   uint64 `json:"seq"`

	WaterVolume  float64 `json:"water_volume"`
	WaterQuality float64 `json:"water_quality"`
	Stamina      float64 `json:"stamina"`

	WaterDrawn           float64 `json:"water_drawn"`
	WaterUsedForFarming  float64 `json:"water_used_for_farming"`
	WaterUsedForDrinking float64 `json:"water_used_for_drinking"`
	WaterUsedForWashing  float64 `json:"water_used_for_washing"`
	WaterWasted          float64 `json:"water_wasted"`
	WaterPolluted        float64 `json:"water_polluted"`
	UnsafeDrinking       float64 `json:"unsafe_drinking"`
	StaminaSpent         float64 `json:"stamina_spent"`
	StaminaRecovered     float64 `json:"stamina_recovered"`

	DrawCount  int `json:"draw_count"`
	FarmCount  int `json:"farm_count"`
	DrinkCount int `json:"drink_count"`
	WashCount  int `json:"wash_count"`
	WasteCount int `json:"waste_count"`
}

type VesselV1 struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Capacity float64 `json:"capacity"`
	Amount   float64 `json:"amount"`
	Quality  float64 `json:"quality"`
}

type SiteV1 struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Completed bool    `json:"completed"`
	Dirt      float64 `json:"dirt,omitempty"`
}

type TransferV1 struct {
	ID    string  `json:"id"`
	Moved float64 `json:"moved"`
	Count int     `json:"count"`
}

type DiagnosticV1 struct {
	Tick      uint64 `json:"tick"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// Ended reports whether the snapshot was taken after the session end.
func (s SnapshotV1) Ended() bool { return s.Ledger.State == "ENDED" }

// Tasks is the number of completed tasks recorded in the ledger.
func (l LedgerV1) Tasks() int {
	return l.DrawCount + l.FarmCount + l.DrinkCount + l.WashCount + l.WasteCount
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line is for tools that only peek; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// Path is the conventional file name for a snapshot at tick.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}
