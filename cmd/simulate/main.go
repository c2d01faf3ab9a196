package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"beltline.dev/internal/persistence/indexdb"
	"beltline.dev/internal/persistence/runlog"
	"beltline.dev/internal/persistence/snapshot"
	"beltline.dev/internal/sim/catalogs"
	"beltline.dev/internal/sim/line"
	"beltline.dev/internal/sim/tuning"
)

// simulate runs a production line to completion synchronously and prints
// the belt statistics. With -data it also records draw/step logs and the
// run index, so the run can be replayed and queried afterwards.
func main() {
	var (
		runID      = flag.String("run", "run_1", "run id")
		seed       = flag.Int64("seed", 0, "random seed (0: tuning seed, then time entropy)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		steps      = flag.Int("steps", 0, "step budget override (0: use tuning)")
		dataDir    = flag.String("data", "", "data directory; when set, draw/step logs and the run index are written")
	)
	flag.Parse()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

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
	var stepLog *runlog.StepLogger
	var idx *indexdb.SQLiteIndex
	if *dataDir != "" {
		runDir := filepath.Join(*dataDir, "runs", *runID)
		_ = os.MkdirAll(runDir, 0o755)

		drawLog = runlog.NewDrawLogger(runDir)
		defer drawLog.Close()
		src = &line.Recorder{Src: src, OnDraw: drawLog.Record}

		stepLog = runlog.NewStepLogger(runDir)
		defer stepLog.Close()

		idx, err = indexdb.OpenSQLite(filepath.Join(runDir, "index.db"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "open run index:", err)
			os.Exit(1)
		}
		defer idx.Close()
	}

	l, err := line.New(cfg, cats, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "line:", err)
		os.Exit(1)
	}
	if stepLog != nil {
		l.SetStepLogger(stepLog)
	}
	if idx != nil {
		idx.StartRun(indexdb.MetaFor(l.Config(), cats))
	}
	if *dataDir != "" && tune.SnapshotEverySteps > 0 {
		snapDir := filepath.Join(*dataDir, "runs", *runID, "snapshots")
		l.SetSnapshotFunc(tune.SnapshotEverySteps, func(cur *line.Line) error {
			snap := snapshot.Capture(cur, cats)
			return snapshot.WriteSnapshot(filepath.Join(snapDir, fmt.Sprintf("snap-%08d.zst", snap.Header.Step)), snap)
		})
	}

	anomalies := 0
	for i := 0; i < stepBudget; i++ {
		if res := l.Step(); res.Anomaly != "" {
			anomalies++
			fmt.Fprintf(os.Stderr, "step %d: anomaly %s\n", res.Step, res.Anomaly)
		}
	}

	counts := l.Counts()
	if idx != nil {
		idx.FinishRun(*runID, counts, l.StateDigest())
		idx.Flush()
	}

	fmt.Println(" Belt statistics")
	for _, k := range l.Belt().GenKinds() {
		if k.ID == line.EmptyID {
			continue
		}
		fmt.Printf("\tcomponent %s came off the belt untouched\t%d times\n", k.ID, counts[k.ID])
	}
	for _, k := range l.Belt().FinishedKinds() {
		fmt.Printf("\tfinished %s was counted off the belt\t\t%d times\n", k.ID, counts[k.ID])
	}
	fmt.Printf("\n\tsteps=%d seed=%d anomalies=%d digest=%s\n", l.CurrentStep(), effectiveSeed, anomalies, l.StateDigest())
}
