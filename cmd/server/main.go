package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"waterchores.dev/internal/persistence/indexdb"
	persistlog "waterchores.dev/internal/persistence/log"
	"waterchores.dev/internal/persistence/mirror"
	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/tuning"
	"waterchores.dev/internal/transport/ws"
	"waterchores.dev/schemas"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (ledger entries + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "resume the latest unfinished session from the data dir (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadEnvConfig()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	validator, err := schemas.Load()
	if err != nil {
		logger.Fatalf("load schemas: %v", err)
	}

	// Optional read model; does not affect the simulation.
	idx, err := openRuntimeIndex(*dataDir, cfg, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	mir, err := openMirror(*dataDir, cfg.Mirror, log.New(os.Stdout, "[mirror] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mir.Close()

	logDir := filepath.Join(*dataDir, "log")
	logOpts := persistlog.Options{OnClose: mir.Enqueue}
	tickLog := persistlog.NewTickLogger(logDir, logOpts)
	ledgerLog := persistlog.NewLedgerLogger(logDir, logOpts)
	defer tickLog.Close()
	defer ledgerLog.Close()

	hub := ws.NewHub(log.New(os.Stdout, "[ws] ", log.LstdFlags))
	snapCh := make(chan snapshot.SnapshotV1, 4)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(*dataDir)
	}
	var resume *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		resume = &snap
	}

	var sess *session.Session
	sessCfg := session.Config{
		Tuning:       tune,
		Visual:       hub,
		Effects:      hub,
		Logger:       log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds),
		TickLogger:   teeLogger{ticks: tickLog, ledger: ledgerLog, index: idx, log: logger},
		SnapshotSink: snapCh,
		Publish:      func(res session.StepResult) { hub.Publish(res, sess.VesselStatuses()) },
	}
	if resume != nil {
		sessCfg.ID = resume.Header.SessionID
	}
	sess, err = session.New(sessCfg)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}
	for _, d := range sess.Diagnostics() {
		logger.Printf("scene diagnostic: %s: %s", d.Component, d.Message)
	}
	if resume != nil {
		if err := sess.ImportSnapshot(*resume); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed session=%s from snapshot=%s tick=%d", sess.ID(), filepath.Base(snapshotToLoad), sess.Tick())
	} else {
		logger.Printf("started session=%s", sess.ID())
	}

	ctx, cancel := signalContext()
	defer cancel()

	writer := snapshotWriter{dataDir: *dataDir, index: idx, mirror: mir, log: logger}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.run(ctx, snapCh)
	}()
	defer func() { <-writerDone }()

	go func() {
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("session stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx2, cancel2 := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel2()
		st, err := sess.RequestStatus(ctx2)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, st, hub.Clients(), idx, mir)
	})

	if cfg.adminEnabled() {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			st, err := sess.RequestStatus(ctx2)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(st)
		})
		mux.HandleFunc("/admin/v1/reset", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			id, err := sess.RequestReset(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "session_id": id})
		})
	} else {
		logger.Printf("admin endpoints disabled (WC_ENABLE_ADMIN_HTTP=false)")
	}
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(sess, hub, validator, log.New(os.Stdout, "[ws] ", log.LstdFlags)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// writeMetrics renders the Prometheus text format by hand; the set is small
// and fixed.
func writeMetrics(rw http.ResponseWriter, st session.Status, clients int, idx indexdb.Index, mir *mirror.Mirror) {
	sum := st.Summary
	fmt.Fprintf(rw, "# HELP waterchores_tick Current session tick.\n")
	fmt.Fprintf(rw, "# TYPE waterchores_tick gauge\n")
	fmt.Fprintf(rw, "waterchores_tick{session=%q} %d\n", st.SessionID, st.Tick)

	fmt.Fprintf(rw, "# HELP waterchores_clients Connected websocket clients.\n")
	fmt.Fprintf(rw, "# TYPE waterchores_clients gauge\n")
	fmt.Fprintf(rw, "waterchores_clients %d\n", clients)

	fmt.Fprintf(rw, "# HELP waterchores_tasks Tasks completed in the current session.\n")
	fmt.Fprintf(rw, "# TYPE waterchores_tasks gauge\n")
	fmt.Fprintf(rw, "waterchores_tasks{session=%q} %d\n", st.SessionID, sum.Tasks)

	fmt.Fprintf(rw, "# HELP waterchores_gauge Session gauges (0..100).\n")
	fmt.Fprintf(rw, "# TYPE waterchores_gauge gauge\n")
	fmt.Fprintf(rw, "waterchores_gauge{session=%q,gauge=%q} %.3f\n", st.SessionID, "water_volume", sum.Gauges.WaterVolume)
	fmt.Fprintf(rw, "waterchores_gauge{session=%q,gauge=%q} %.3f\n", st.SessionID, "water_quality", sum.Gauges.WaterQuality)
	fmt.Fprintf(rw, "waterchores_gauge{session=%q,gauge=%q} %.3f\n", st.SessionID, "stamina", sum.Gauges.Stamina)
	fmt.Fprintf(rw, "waterchores_gauge{session=%q,gauge=%q} %.3f\n", st.SessionID, "hygiene", sum.Hygiene)
	fmt.Fprintf(rw, "waterchores_gauge{session=%q,gauge=%q} %.3f\n", st.SessionID, "efficiency", sum.Efficiency)

	fmt.Fprintf(rw, "# HELP waterchores_diagnostics Retained scene diagnostics.\n")
	fmt.Fprintf(rw, "# TYPE waterchores_diagnostics gauge\n")
	fmt.Fprintf(rw, "waterchores_diagnostics %d\n", len(st.Diagnostics))

	if idx != nil {
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP waterchores_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE waterchores_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "waterchores_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP waterchores_index_dropped_total Index records dropped.\n")
		fmt.Fprintf(rw, "# TYPE waterchores_index_dropped_total counter\n")
		fmt.Fprintf(rw, "waterchores_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "waterchores_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
		fmt.Fprintf(rw, "waterchores_index_dropped_total{kind=%q} %d\n", "archive", s.DropArchiveTotal)
		fmt.Fprintf(rw, "waterchores_index_dropped_total{kind=%q} %d\n", "queue", s.QueueDroppedTotal)
		fmt.Fprintf(rw, "# HELP waterchores_index_flush_fail_total Failed index flushes.\n")
		fmt.Fprintf(rw, "# TYPE waterchores_index_flush_fail_total counter\n")
		fmt.Fprintf(rw, "waterchores_index_flush_fail_total %d\n", s.FlushFailTotal)
	}
	if mir != nil {
		s := mir.Stats()
		fmt.Fprintf(rw, "# HELP waterchores_mirror_uploads_total Mirror uploads by outcome.\n")
		fmt.Fprintf(rw, "# TYPE waterchores_mirror_uploads_total counter\n")
		fmt.Fprintf(rw, "waterchores_mirror_uploads_total{outcome=%q} %d\n", "ok", s.Uploaded)
		fmt.Fprintf(rw, "waterchores_mirror_uploads_total{outcome=%q} %d\n", "failed", s.Failed)
		fmt.Fprintf(rw, "waterchores_mirror_uploads_total{outcome=%q} %d\n", "dropped", s.Dropped)
		fmt.Fprintf(rw, "# HELP waterchores_mirror_queue_depth Mirror backlog.\n")
		fmt.Fprintf(rw, "# TYPE waterchores_mirror_queue_depth gauge\n")
		fmt.Fprintf(rw, "waterchores_mirror_queue_depth %d\n", s.QueueDepth)
	}
}
