package line

// Worker stands at a fixed belt slot and assembles pairs of raw components
// into finished items. All state transitions happen inside Act, once per
// step in which the worker is selected.
type Worker struct {
	ID     string
	Pos    int
	Weight int

	Left      KindID // hands; EmptyID when not holding anything
	Right     KindID
	Countdown int // >0 while assembling; hands are frozen until it hits 0

	building *Kind // finished kind currently being assembled
	holding  *Kind // completed item awaiting a free belt slot
	acted    bool  // selected this step; reset at the advance boundary
}

// Holding returns the completed kind the worker is waiting to place, or nil.
func (w *Worker) Holding() *Kind { return w.holding }

// Acted reports whether the worker has already been selected this step.
func (w *Worker) Acted() bool { return w.acted }

// Act offers the worker the current content of its belt slot and returns
// what the slot holds afterwards. The caller writes the result back.
//
// Evaluation order mirrors the assembly state machine: a ticking countdown
// blocks everything else; a completed item must be placed before the hands
// are free again; only then may a raw component be picked up.
func (w *Worker) Act(slot KindID, finished []*Kind) KindID {
	if w.Countdown > 0 {
		w.Countdown--
		if w.Countdown > 0 {
			// Still assembling; the slot passes by untouched.
			return slot
		}
		// Assembly complete: the finished item goes to the right hand.
		w.Left = EmptyID
		w.Right = w.building.ID
		w.holding = w.building
		w.building = nil
	}

	if w.holding != nil {
		if slot != EmptyID {
			// No room on the belt. Hold the item and retry when the slot
			// is next offered empty; nothing is ever dropped.
			return slot
		}
		out := w.holding.ID
		w.holding = nil
		w.Left = EmptyID
		w.Right = EmptyID
		return out
	}

	if slot == EmptyID || isFinishedKind(slot, finished) {
		// Nothing a worker picks up: empty slot, or an item already bound
		// for collection at the end of the belt.
		return slot
	}

	// A worker never holds two copies of the same raw kind.
	if w.Left == slot || w.Right == slot {
		return slot
	}
	switch {
	case w.Left == EmptyID:
		w.Left = slot
	case w.Right == EmptyID:
		w.Right = slot
	default:
		return slot
	}

	if w.Left != EmptyID && w.Right != EmptyID {
		if k := matchAssembly(w.Left, w.Right, finished); k != nil {
			w.building = k
			w.Countdown = k.BuildTicks
		}
	}
	return EmptyID
}

func isFinishedKind(id KindID, finished []*Kind) bool {
	for _, k := range finished {
		if k.ID == id {
			return true
		}
	}
	return false
}

// matchAssembly returns the first finished kind whose required components
// are all present among the two held kinds. Order and multiplicity do not
// matter in the two-hand model.
func matchAssembly(a, b KindID, finished []*Kind) *Kind {
	for _, k := range finished {
		if len(k.Components) == 0 {
			continue
		}
		ok := true
		for _, c := range k.Components {
			if c != a && c != b {
				ok = false
				break
			}
		}
		if ok {
			return k
		}
	}
	return nil
}
