package line

import "testing"

func testFinished() []*Kind {
	return []*Kind{
		{ID: "PRODUCT_P", Components: []KindID{"COMP_A", "COMP_B"}, BuildTicks: 4},
	}
}

func TestWorker_PickupLeftThenRight(t *testing.T) {
	w := &Worker{ID: "W1", Pos: 1, Weight: 1, Left: EmptyID, Right: EmptyID}
	fin := testFinished()

	if out := w.Act("COMP_A", fin); out != EmptyID {
		t.Fatalf("pickup should empty the slot, got %q", out)
	}
	if w.Left != "COMP_A" || w.Right != EmptyID {
		t.Fatalf("left hand fills first: left=%q right=%q", w.Left, w.Right)
	}

	// A second copy of the same raw kind is refused.
	if out := w.Act("COMP_A", fin); out != "COMP_A" {
		t.Fatalf("duplicate kind must stay on the belt, got %q", out)
	}
	if w.Right != EmptyID {
		t.Fatalf("duplicate kind must not be picked up, right=%q", w.Right)
	}
}

func TestWorker_AssemblyCountdownAndPlacement(t *testing.T) {
	w := &Worker{ID: "W1", Pos: 1, Weight: 1, Left: EmptyID, Right: EmptyID}
	fin := testFinished()

	w.Act("COMP_A", fin)
	if out := w.Act("COMP_B", fin); out != EmptyID {
		t.Fatalf("second pickup should empty the slot, got %q", out)
	}
	if w.Countdown != 4 {
		t.Fatalf("assembly should start with countdown=4, got %d", w.Countdown)
	}

	// Three steps of ticking: the slot content passes by untouched.
	for i := 0; i < 3; i++ {
		if out := w.Act("COMP_A", fin); out != "COMP_A" {
			t.Fatalf("tick %d: assembling worker must not touch the slot, got %q", i, out)
		}
	}
	if w.Countdown != 1 {
		t.Fatalf("countdown after three ticks: got %d, want 1", w.Countdown)
	}

	// Final tick with an empty slot: the finished item is placed immediately.
	if out := w.Act(EmptyID, fin); out != "PRODUCT_P" {
		t.Fatalf("finished item should be placed, got %q", out)
	}
	if w.Left != EmptyID || w.Right != EmptyID || w.Countdown != 0 || w.Holding() != nil {
		t.Fatalf("hands must be free after placement: left=%q right=%q countdown=%d", w.Left, w.Right, w.Countdown)
	}
}

func TestWorker_BlockedPlacementRetries(t *testing.T) {
	w := &Worker{ID: "W1", Pos: 1, Weight: 1, Left: EmptyID, Right: EmptyID}
	fin := testFinished()

	w.Act("COMP_A", fin)
	w.Act("COMP_B", fin)
	for i := 0; i < 3; i++ {
		w.Act(EmptyID, fin)
	}

	// Final tick, but the slot is occupied: the worker holds the item.
	if out := w.Act("COMP_A", fin); out != "COMP_A" {
		t.Fatalf("occupied slot must be left alone, got %q", out)
	}
	if w.Holding() == nil || w.Holding().ID != "PRODUCT_P" {
		t.Fatalf("worker should be holding the finished item")
	}

	// Still blocked next step; nothing is dropped and nothing picked up.
	if out := w.Act("COMP_B", fin); out != "COMP_B" {
		t.Fatalf("holding worker must not pick up, got %q", out)
	}

	// First empty offer places it.
	if out := w.Act(EmptyID, fin); out != "PRODUCT_P" {
		t.Fatalf("empty slot should receive the held item, got %q", out)
	}
	if w.Holding() != nil {
		t.Fatalf("holding must clear after placement")
	}
}

func TestWorker_IgnoresFinishedKindsOnBelt(t *testing.T) {
	w := &Worker{ID: "W1", Pos: 1, Weight: 1, Left: EmptyID, Right: EmptyID}
	fin := testFinished()

	if out := w.Act("PRODUCT_P", fin); out != "PRODUCT_P" {
		t.Fatalf("finished items pass by untouched, got %q", out)
	}
	if w.Left != EmptyID {
		t.Fatalf("finished item must not be picked up, left=%q", w.Left)
	}
}

func TestMatchAssembly_OrderIndependent(t *testing.T) {
	fin := testFinished()
	if k := matchAssembly("COMP_A", "COMP_B", fin); k == nil || k.ID != "PRODUCT_P" {
		t.Fatalf("A+B should match PRODUCT_P")
	}
	if k := matchAssembly("COMP_B", "COMP_A", fin); k == nil || k.ID != "PRODUCT_P" {
		t.Fatalf("B+A should match PRODUCT_P")
	}
	if k := matchAssembly("COMP_A", "COMP_A", fin); k != nil {
		t.Fatalf("A+A must not match, got %s", k.ID)
	}
}
