package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "waterchores.dev/internal/persistence/log"
	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/tuning"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst to start from (optional)")
		logDir     = flag.String("log", "", "log dir containing events/ (optional)")
		sessionID  = flag.String("session", "", "session id to replay (default: the snapshot's)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning the session ran with")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" && (*logDir == "" || *sessionID == "") {
		fmt.Fprintln(os.Stderr, "need -snapshot, or -log with -session")
		os.Exit(2)
	}

	var snap *snapshot.SnapshotV1
	if *snapPath != "" {
		s, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		snap = &s
		fmt.Printf("snapshot v%d session=%s tick=%d state=%s tasks=%d/%d vessels=%d sites=%d diagnostics=%d\n",
			s.Header.Version, s.Header.SessionID, s.Header.Tick, s.Ledger.State, s.Ledger.Tasks(), s.MaxTasks,
			len(s.Vessels), len(s.Sites), len(s.Diagnostics))
		if *sessionID == "" {
			*sessionID = s.Header.SessionID
		}
	}
	if *logDir == "" {
		return
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	sess, err := session.New(session.Config{ID: *sessionID, Tuning: tune})
	if err != nil {
		fmt.Fprintln(os.Stderr, "session:", err)
		os.Exit(1)
	}
	var from uint64
	if snap != nil {
		if err := sess.ImportSnapshot(*snap); err != nil {
			fmt.Fprintln(os.Stderr, "import snapshot:", err)
			os.Exit(1)
		}
		from = snap.Header.Tick
	}

	r := &replayer{sess: sess, sessionID: *sessionID, fromTick: from, toTick: *toTick}
	if err := persistlog.ReadTickLog(*logDir, r.apply); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	sum := sess.Summary()
	fmt.Printf("replay ok: checked=%d ticks (from tick=%d) state=%s tasks=%d/%d hygiene=%.1f efficiency=%.1f\n",
		r.checked, from, sum.State, sum.Tasks, sum.MaxTasks, sum.Hygiene, sum.Efficiency)
}
