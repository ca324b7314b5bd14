package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"waterchores.dev/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	sessionID := fs.String("session", "", "session id (entries, totals, snapshots, archive)")
	kind := fs.String("kind", "", "entry kind filter, e.g. DRAW (entries)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "sessions"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "sessions.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runQuery(ctx, r, q, *sessionID, *kind, *limit, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, r *indexdb.Reader, q, sessionID, kind string, limit int, emit func(any)) error {
	if q != "sessions" && sessionID == "" {
		return fmt.Errorf("missing -session")
	}
	switch q {
	case "sessions":
		rows, err := r.Sessions(ctx, limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(row)
		}
	case "entries":
		rows, err := r.Entries(ctx, sessionID, strings.ToUpper(kind), limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(row)
		}
	case "totals":
		rows, err := r.Totals(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(row)
		}
	case "snapshots":
		rows, err := r.Snapshots(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			emit(row)
		}
	case "archive":
		p, err := r.ArchivePath(ctx, sessionID)
		if err != nil {
			return err
		}
		emit(map[string]string{"session_id": sessionID, "path": p})
	default:
		return fmt.Errorf("unknown query (sessions|entries|totals|snapshots|archive)")
	}
	return nil
}
