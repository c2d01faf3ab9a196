package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"beltline.dev/internal/persistence/runlog"
	"beltline.dev/internal/sim/catalogs"
	"beltline.dev/internal/sim/line"
	"beltline.dev/internal/sim/tuning"
)

// replay re-runs a recorded draw sequence against the same catalogs and
// verifies that every step reproduces the digest the original run logged.
func main() {
	var (
		dataDir    = flag.String("data", "./data", "data directory the run was recorded under")
		runID      = flag.String("run", "run_1", "run id to replay")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	)
	flag.Parse()

	runDir := filepath.Join(*dataDir, "runs", *runID)

	draws, err := runlog.ReadDraws(runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read draws:", err)
		os.Exit(1)
	}
	steps, err := runlog.ReadSteps(runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read steps:", err)
		os.Exit(1)
	}
	if len(steps) == 0 {
		fmt.Fprintln(os.Stderr, "empty step log")
		os.Exit(1)
	}

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

	l, err := line.New(line.Config{
		RunID:      *runID,
		SlotCount:  tune.SlotCount,
		Steps:      len(steps),
		StepRateHz: tune.StepRateHz,
	}, cats, line.NewScripted(draws...))
	if err != nil {
		fmt.Fprintln(os.Stderr, "line:", err)
		os.Exit(1)
	}

	for _, want := range steps {
		res, digest := l.StepOnce()
		if res.Step != want.Step {
			fmt.Fprintf(os.Stderr, "step mismatch: got=%d want=%d\n", res.Step, want.Step)
			os.Exit(1)
		}
		if digest != want.Digest {
			fmt.Fprintf(os.Stderr, "digest mismatch at step %d: got=%s want=%s\n", want.Step, digest, want.Digest)
			os.Exit(1)
		}
	}

	fmt.Printf("replay ok: run=%s checked=%d steps draws=%d digest=%s\n", *runID, len(steps), len(draws), l.StateDigest())
}
