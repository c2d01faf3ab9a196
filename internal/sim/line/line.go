package line

import (
	"fmt"
	"sync/atomic"

	"beltline.dev/internal/protocol"
	"beltline.dev/internal/sim/catalogs"
)

// Line is a single-threaded production-line simulation. All state must be
// accessed only from the goroutine driving Step (the run loop in server
// mode, the caller in one-shot mode).
type Line struct {
	cfg  Config
	cats *catalogs.Catalogs
	belt *Belt

	step atomic.Uint64

	observers map[string]*observerState

	obsJoin  chan ObserverJoin
	obsLeave chan string
	stop     chan struct{}

	nextObsNum atomic.Uint64

	// Optional logger (may be nil). Implemented in internal/persistence.
	stepLogger StepLogger

	snapshotEvery int
	snapshotFn    func(*Line) error
}

type StepLogger interface {
	WriteStep(entry StepLogEntry) error
}

// StepLogEntry is the per-step record written to the step log and the run
// index. Digest covers belt slots, worker state and collected counts.
type StepLogEntry struct {
	Step      uint64 `json:"step"`
	Generated KindID `json:"generated,omitempty"`
	Worker    string `json:"worker,omitempty"`
	Anomaly   string `json:"anomaly,omitempty"`
	Digest    string `json:"digest"`
}

// StepResult reports what a single step did.
type StepResult struct {
	Step      uint64
	Generated KindID
	Worker    string
	Anomaly   string // E_* code; empty when the step completed normally
}

// New wires a line from the catalogs: kinds with a generation weight form
// the generation roster (file order), kinds with components the finished
// roster, and every worker def becomes a stationed worker. Configuration
// problems (zero-mass rosters, bad positions, dangling components) surface
// here, before the first step.
func New(cfg Config, cats *catalogs.Catalogs, src Source) (*Line, error) {
	cfg.applyDefaults()
	if cats == nil {
		return nil, fmt.Errorf("line: nil catalogs")
	}

	belt, err := NewBelt(cfg.SlotCount, src)
	if err != nil {
		return nil, err
	}

	kinds := map[KindID]*Kind{}
	for _, id := range cats.Kinds.Order {
		def := cats.Kinds.Defs[id]
		comps := make([]KindID, 0, len(def.Components))
		for _, c := range def.Components {
			comps = append(comps, KindID(c))
		}
		kinds[KindID(id)] = &Kind{
			ID:         KindID(def.ID),
			Weight:     def.GenWeight,
			Components: comps,
			BuildTicks: def.BuildTicks,
		}
	}

	// Registration order is catalog file order; raw kinds first so finished
	// kinds never reference a component that is not registered yet.
	for _, id := range cats.Kinds.Order {
		k := kinds[KindID(id)]
		if k.Weight > 0 {
			if err := belt.RegisterGenKind(k); err != nil {
				return nil, err
			}
		}
	}
	for _, id := range cats.Kinds.Order {
		k := kinds[KindID(id)]
		if k.Finished() {
			if err := belt.RegisterFinishedKind(k); err != nil {
				return nil, err
			}
		}
	}
	for _, def := range cats.Workers.Defs {
		w := &Worker{ID: def.ID, Pos: def.Pos, Weight: def.Weight}
		if err := belt.RegisterWorker(w); err != nil {
			return nil, err
		}
	}
	if err := belt.Validate(); err != nil {
		return nil, err
	}

	return &Line{
		cfg:       cfg,
		cats:      cats,
		belt:      belt,
		observers: map[string]*observerState{},
		obsJoin:   make(chan ObserverJoin, 16),
		obsLeave:  make(chan string, 16),
		stop:      make(chan struct{}),
	}, nil
}

func (l *Line) SetStepLogger(sl StepLogger) { l.stepLogger = sl }

// SetSnapshotFunc installs a periodic state capture, invoked from the step
// goroutine every everySteps completed steps. Configure before the run starts.
func (l *Line) SetSnapshotFunc(everySteps int, fn func(*Line) error) {
	l.snapshotEvery = everySteps
	l.snapshotFn = fn
}

// Config returns the effective run parameters (defaults applied).
func (l *Line) Config() Config { return l.cfg }

// Belt exposes the underlying belt for tests and reporting.
func (l *Line) Belt() *Belt { return l.belt }

// CurrentStep returns the number of completed steps.
func (l *Line) CurrentStep() uint64 { return l.step.Load() }

// Counts reports the collected count per kind. Idempotent: reading twice
// without an intervening step yields identical maps.
func (l *Line) Counts() map[KindID]uint64 { return l.belt.Counts() }

// Step runs one full simulation step: advance the belt, generate and place
// the next item, select one worker, offer it its slot, write the result
// back. A selection failure aborts the rest of the step cleanly; no partial
// slot writes happen on the failed phase.
func (l *Line) Step() StepResult {
	step := l.step.Load()
	res := StepResult{Step: step}

	l.belt.Advance(1)

	id, err := l.belt.GenerateNextItem()
	if err != nil {
		res.Anomaly = protocol.ErrSelectionExhausted
		l.finishStep(res)
		return res
	}
	l.belt.PlaceAtEntry(id)
	res.Generated = id

	w, err := l.belt.PickNextWorker()
	if err != nil {
		res.Anomaly = protocol.ErrSelectionExhausted
		l.finishStep(res)
		return res
	}
	res.Worker = w.ID

	out := w.Act(l.belt.Slot(w.Pos), l.belt.FinishedKinds())
	l.belt.WriteSlot(w.Pos, out)

	l.finishStep(res)
	return res
}

func (l *Line) finishStep(res StepResult) {
	done := l.step.Add(1)
	if l.stepLogger != nil {
		_ = l.stepLogger.WriteStep(StepLogEntry{
			Step:      res.Step,
			Generated: res.Generated,
			Worker:    res.Worker,
			Anomaly:   res.Anomaly,
			Digest:    l.StateDigest(),
		})
	}
	if l.snapshotFn != nil && l.snapshotEvery > 0 && done%uint64(l.snapshotEvery) == 0 {
		_ = l.snapshotFn(l)
	}
}

// StepOnce advances the line by a single step using the same ordering
// semantics as the server loop. Primarily for deterministic replays/tests.
func (l *Line) StepOnce() (StepResult, string) {
	res := l.Step()
	return res, l.StateDigest()
}
