package line

import (
	"math"
	"testing"
)

func testBelt(t *testing.T, src Source) *Belt {
	t.Helper()
	b, err := NewBelt(5, src)
	if err != nil {
		t.Fatalf("NewBelt: %v", err)
	}
	return b
}

func registerTestRosters(t *testing.T, b *Belt) {
	t.Helper()
	kinds := []*Kind{
		{ID: "COMP_A", Weight: 50},
		{ID: "COMP_B", Weight: 50},
		{ID: EmptyID, Weight: 50},
	}
	for _, k := range kinds {
		if err := b.RegisterGenKind(k); err != nil {
			t.Fatalf("RegisterGenKind(%s): %v", k.ID, err)
		}
		assertProbSum(t, b.GenProbs())
	}
	if err := b.RegisterFinishedKind(&Kind{
		ID: "PRODUCT_P", Components: []KindID{"COMP_A", "COMP_B"}, BuildTicks: 4,
	}); err != nil {
		t.Fatalf("RegisterFinishedKind: %v", err)
	}
	for i, pos := range []int{1, 1, 2, 2, 3, 3} {
		w := &Worker{ID: workerID(i), Pos: pos, Weight: 1}
		if err := b.RegisterWorker(w); err != nil {
			t.Fatalf("RegisterWorker(%s): %v", w.ID, err)
		}
		assertProbSum(t, b.WorkerProbs())
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func workerID(i int) string {
	return string([]byte{'W', byte('1' + i)})
}

func assertProbSum(t *testing.T, probs []float64) {
	t.Helper()
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("probabilities sum to %v, want 1.0 (probs=%v)", sum, probs)
	}
}

func TestBelt_RegistrationValidation(t *testing.T) {
	b := testBelt(t, NewScripted(0))

	if err := b.RegisterGenKind(&Kind{ID: "X", Weight: -1}); err == nil {
		t.Fatalf("negative weight must be rejected")
	}
	if err := b.RegisterFinishedKind(&Kind{ID: "P", Components: []KindID{"NOPE"}, BuildTicks: 1}); err == nil {
		t.Fatalf("unknown component must be rejected")
	}
	if err := b.RegisterFinishedKind(&Kind{ID: "P", BuildTicks: 1}); err == nil {
		t.Fatalf("finished kind without components must be rejected")
	}
	if err := b.RegisterWorker(&Worker{ID: "W1", Pos: 9, Weight: 1}); err == nil {
		t.Fatalf("out-of-range position must be rejected")
	}
	if err := b.Validate(); err == nil {
		t.Fatalf("empty rosters must fail validation")
	}
}

func TestBelt_AdvanceCountsExitsAndShifts(t *testing.T) {
	b := testBelt(t, NewScripted(0))
	registerTestRosters(t, b)

	for i, id := range []KindID{"COMP_A", "COMP_B", EmptyID, "PRODUCT_P", "COMP_A"} {
		b.WriteSlot(i, id)
	}
	b.Advance(1)

	want := []KindID{EmptyID, "COMP_A", "COMP_B", EmptyID, "PRODUCT_P"}
	got := b.Slots()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d after advance: got %q, want %q (slots=%v)", i, got[i], want[i], got)
		}
	}
	counts := b.Counts()
	if counts["COMP_A"] != 1 {
		t.Fatalf("the exiting COMP_A must be counted, got %d", counts["COMP_A"])
	}
	if counts["COMP_B"] != 0 || counts["PRODUCT_P"] != 0 {
		t.Fatalf("only the exit slot is counted: %v", counts)
	}
	if counts[EmptyID] != 0 {
		t.Fatalf("empty slots are never counted, got %d", counts[EmptyID])
	}
}

func TestBelt_GenerateMapsDrawToRosterOrder(t *testing.T) {
	b := testBelt(t, NewScripted(0.2, 0.5, 0.9))
	registerTestRosters(t, b)

	want := []KindID{"COMP_A", "COMP_B", EmptyID}
	for i, w := range want {
		id, err := b.GenerateNextItem()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if id != w {
			t.Fatalf("draw %d: got %q, want %q", i, id, w)
		}
	}
}

func TestBelt_PickNextWorkerWithoutReplacement(t *testing.T) {
	b := testBelt(t, NewScripted(0.0))
	registerTestRosters(t, b)

	// Draw 0.0 always lands in the first remaining bucket, so repeated picks
	// within one step walk the roster in order.
	for i := 0; i < 6; i++ {
		w, err := b.PickNextWorker()
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if w.ID != workerID(i) {
			t.Fatalf("pick %d: got %s, want %s", i, w.ID, workerID(i))
		}
		if !w.Acted() {
			t.Fatalf("pick %d: selected worker must be marked acted", i)
		}
	}

	if _, err := b.PickNextWorker(); err != ErrSelectionExhausted {
		t.Fatalf("seventh pick: got %v, want ErrSelectionExhausted", err)
	}

	// Advancing resets the per-step exclusions.
	b.Advance(1)
	w, err := b.PickNextWorker()
	if err != nil {
		t.Fatalf("pick after advance: %v", err)
	}
	if w.ID != "W1" {
		t.Fatalf("pick after advance: got %s, want W1", w.ID)
	}
}

func TestBelt_WorkerSelectionRenormalizes(t *testing.T) {
	// With six equal workers and the draw scaled by the remaining mass,
	// draw 0.55 picks the ceil(0.55*n)-th remaining worker each time.
	b := testBelt(t, NewScripted(0.55))
	registerTestRosters(t, b)

	want := []string{"W4", "W3", "W5", "W2", "W6", "W1"}
	for i, id := range want {
		w, err := b.PickNextWorker()
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if w.ID != id {
			t.Fatalf("pick %d: got %s, want %s", i, w.ID, id)
		}
	}
}
