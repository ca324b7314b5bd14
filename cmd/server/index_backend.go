package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"waterchores.dev/internal/persistence/indexdb"
)

// openRuntimeIndex picks the read-model backend. It never affects the
// simulation; a nil index means indexing is off.
func openRuntimeIndex(dataDir string, cfg envConfig, disableDB bool, logger *log.Logger) (indexdb.Index, error) {
	if disableDB {
		return nil, nil
	}
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Index.Backend)); backend {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "sessions.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "ingest":
		if strings.TrimSpace(cfg.Index.IngestURL) == "" {
			return nil, fmt.Errorf("WC_INDEX_BACKEND=ingest but WC_INDEX_INGEST_URL is empty")
		}
		idx, err := indexdb.OpenIngest(indexdb.IngestConfig{
			Endpoint:      cfg.Index.IngestURL,
			Token:         cfg.Index.IngestToken,
			ServerID:      cfg.ServerID,
			BatchSize:     cfg.Index.BatchSize,
			FlushInterval: cfg.Index.Flush,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported WC_INDEX_BACKEND: %s", backend)
	}
}
