package indexdb

import (
	"path/filepath"
	"testing"

	"beltline.dev/internal/sim/line"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_RunLifecycle(t *testing.T) {
	idx := openTestIndex(t)

	idx.StartRun(RunMeta{
		RunID:         "run_t",
		Seed:          1337,
		Steps:         100,
		SlotCount:     5,
		KindsDigest:   "kd",
		WorkersDigest: "wd",
	})

	logger := idx.ForRun("run_t")
	for i := 0; i < 10; i++ {
		entry := line.StepLogEntry{Step: uint64(i), Generated: "COMP_A", Worker: "W1", Digest: "d"}
		if err := logger.WriteStep(entry); err != nil {
			t.Fatalf("WriteStep %d: %v", i, err)
		}
	}

	// Not finished yet: metadata is queryable, final fields are not set.
	sum, err := idx.QueryRun("run_t")
	if err != nil {
		t.Fatalf("QueryRun: %v", err)
	}
	if sum.Finished {
		t.Fatalf("run must not be finished yet")
	}
	if sum.Seed != 1337 || sum.Steps != 100 || sum.SlotCount != 5 {
		t.Fatalf("metadata mismatch: %+v", sum)
	}

	idx.FinishRun("run_t", map[line.KindID]uint64{
		"COMP_A":    16,
		"COMP_B":    16,
		"PRODUCT_P": 15,
	}, "final")

	sum, err = idx.QueryRun("run_t")
	if err != nil {
		t.Fatalf("QueryRun after finish: %v", err)
	}
	if !sum.Finished {
		t.Fatalf("run must be finished")
	}
	if sum.FinalDigest != "final" {
		t.Fatalf("final digest: got %q", sum.FinalDigest)
	}
	if sum.Counts["COMP_A"] != 16 || sum.Counts["COMP_B"] != 16 || sum.Counts["PRODUCT_P"] != 15 {
		t.Fatalf("counts: %v", sum.Counts)
	}
}

func TestSQLiteIndex_QueryUnknownRun(t *testing.T) {
	idx := openTestIndex(t)
	if _, err := idx.QueryRun("nope"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestSQLiteIndex_WriteAfterClose(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Writes after close are silent no-ops; the step loop never fails on
	// indexer shutdown.
	if err := idx.WriteStep("r", line.StepLogEntry{Step: 1, Digest: "d"}); err != nil {
		t.Fatalf("WriteStep after close: %v", err)
	}
	idx.StartRun(RunMeta{RunID: "r"})
	idx.FinishRun("r", nil, "d")
	idx.Flush()
}

func TestSQLiteIndex_Stats(t *testing.T) {
	idx := openTestIndex(t)
	st := idx.Stats()
	if st.QueueCapacity == 0 {
		t.Fatalf("queue capacity must be reported")
	}
	if st.DropStepTotal != 0 {
		t.Fatalf("fresh index must have no drops, got %d", st.DropStepTotal)
	}
}
