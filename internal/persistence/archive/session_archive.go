package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"waterchores.dev/internal/persistence/snapshot"
)

type SessionArchiveMeta struct {
	SessionID  string `json:"session_id"`
	EndTick    uint64 `json:"end_tick"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	Tasks      int    `json:"tasks"`
	MaxTasks   int    `json:"max_tasks"`
	Snapshot   string `json:"snapshot"`
	CreatedAt  string `json:"created_at"`
	TickRateHz int    `json:"tick_rate_hz"`

	WaterDrawn  float64 `json:"water_drawn"`
	WaterWasted float64 `json:"water_wasted"`
	Stamina     float64 `json:"stamina"`
}

// ArchiveSessionSnapshot copies a session-end snapshot into
// `dataDir/archives/session_<id>/`. Snapshots of running sessions are not
// archived (archived=false).
func ArchiveSessionSnapshot(dataDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if !snap.Ended() {
		return "", false, nil
	}
	if snap.Header.SessionID == "" {
		return "", false, errors.New("archive: snapshot has no session id")
	}

	archiveDir := Dir(dataDir, snap.Header.SessionID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := SessionArchiveMeta{
		SessionID:   snap.Header.SessionID,
		EndTick:     snap.Header.Tick,
		ElapsedMS:   snap.ElapsedMS,
		Tasks:       snap.Ledger.Tasks(),
		MaxTasks:    snap.MaxTasks,
		Snapshot:    filepath.Base(dst),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		TickRateHz:  snap.TickRate,
		WaterDrawn:  snap.Ledger.WaterDrawn,
		WaterWasted: snap.Ledger.WaterWasted,
		Stamina:     snap.Ledger.Stamina,
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, fmt.Errorf("archive meta: %w", err)
	}
	return dst, true, nil
}

func Dir(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "archives", "session_"+sessionID)
}

// List returns the metadata of every archived session, oldest end first.
func List(dataDir string) ([]SessionArchiveMeta, error) {
	root := filepath.Join(dataDir, "archives")
	ents, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []SessionArchiveMeta
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(root, e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var m SessionArchiveMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("%s/meta.json: %w", e.Name(), err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
