package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"beltline.dev/internal/persistence/indexdb"
	"beltline.dev/internal/persistence/runlog"
	"beltline.dev/internal/persistence/snapshot"
	"beltline.dev/internal/sim/catalogs"
	"beltline.dev/internal/sim/line"
	"beltline.dev/internal/sim/tuning"
	"beltline.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		runID      = flag.String("run", "run_1", "run id")
		seed       = flag.Int64("seed", 0, "random seed (0: tuning seed, then time entropy)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		steps      = flag.Int("steps", 0, "step budget override (0: use tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	runDir := filepath.Join(*dataDir, "runs", *runID)
	_ = os.MkdirAll(runDir, 0o755)

	effectiveSeed := *seed
	if effectiveSeed == 0 {
		effectiveSeed = tune.Seed
	}
	if effectiveSeed == 0 {
		effectiveSeed = time.Now().UnixNano()
	}

	stepBudget := tune.Steps
	if *steps > 0 {
		stepBudget = *steps
	}

	cfg := line.Config{
		RunID:      *runID,
		SlotCount:  tune.SlotCount,
		Steps:      stepBudget,
		StepRateHz: tune.StepRateHz,
		Seed:       effectiveSeed,
	}

	var src line.Source = line.NewSeededSource(effectiveSeed)
	var drawLog *runlog.DrawLogger
	if tune.Log.DrawLog {
		drawLog = runlog.NewDrawLogger(runDir)
		defer drawLog.Close()
		src = &line.Recorder{Src: src, OnDraw: drawLog.Record}
	}

	l, err := line.New(cfg, cats, src)
	if err != nil {
		logger.Fatalf("line: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(runDir, "index.db"))
		if err != nil {
			logger.Fatalf("open run index: %v", err)
		}
		defer idx.Close()
		idx.StartRun(indexdb.MetaFor(l.Config(), cats))
	}

	var loggers []line.StepLogger
	if tune.Log.StepLog {
		stepLog := runlog.NewStepLogger(runDir)
		defer stepLog.Close()
		loggers = append(loggers, stepLog)
	}
	if idx != nil {
		loggers = append(loggers, idx.ForRun(*runID))
	}
	if len(loggers) > 0 {
		l.SetStepLogger(multiStepLogger(loggers))
	}

	if tune.SnapshotEverySteps > 0 {
		snapDir := filepath.Join(runDir, "snapshots")
		l.SetSnapshotFunc(tune.SnapshotEverySteps, func(cur *line.Line) error {
			snap := snapshot.Capture(cur, cats)
			path := filepath.Join(snapDir, fmt.Sprintf("snap-%08d.zst", snap.Header.Step))
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot at step %d: %v", snap.Header.Step, err)
				return err
			}
			return nil
		})
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		err := l.Run(ctx)
		if err != nil && err != context.Canceled {
			logger.Printf("line stopped: %v", err)
		}
		counts := l.Counts()
		digest := l.StateDigest()
		if idx != nil {
			idx.FinishRun(*runID, counts, digest)
			idx.Flush()
		}
		if err == nil {
			logger.Printf("run complete: run=%s steps=%d digest=%s", *runID, l.CurrentStep(), digest)
			printSummary(logger, l)
		}
		cancel()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format. Only atomically readable
		// values: the step loop owns everything else.
		fmt.Fprintf(rw, "# HELP beltline_run_step Completed simulation steps.\n")
		fmt.Fprintf(rw, "# TYPE beltline_run_step gauge\n")
		fmt.Fprintf(rw, "beltline_run_step{run=%q} %d\n", *runID, l.CurrentStep())

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP beltline_index_queue_depth Run index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE beltline_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "beltline_index_queue_depth{run=%q} %d\n", *runID, st.QueueDepth)
			fmt.Fprintf(rw, "# HELP beltline_index_dropped_steps_total Steps dropped by the index writer.\n")
			fmt.Fprintf(rw, "# TYPE beltline_index_dropped_steps_total counter\n")
			fmt.Fprintf(rw, "beltline_index_dropped_steps_total{run=%q} %d\n", *runID, st.DropStepTotal)
		}
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(l, logger).Handler())

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

	logger.Printf("listening on %s (run=%s seed=%d steps=%d)", *addr, *runID, effectiveSeed, stepBudget)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func printSummary(logger *log.Logger, l *line.Line) {
	counts := l.Counts()
	for _, k := range l.Belt().GenKinds() {
		if k.ID == line.EmptyID {
			continue
		}
		logger.Printf("component %s came off untouched %d times", k.ID, counts[k.ID])
	}
	for _, k := range l.Belt().FinishedKinds() {
		logger.Printf("finished %s was counted off %d times", k.ID, counts[k.ID])
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

// multiStepLogger fans a step entry out to every configured sink.
type multiStepLogger []line.StepLogger

func (m multiStepLogger) WriteStep(entry line.StepLogEntry) error {
	var first error
	for _, l := range m {
		if err := l.WriteStep(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
