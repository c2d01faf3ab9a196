package line

import "fmt"

// Belt owns the ordered slot sequence (index 0 is the entry, the last index
// the exit), the generation and finished-kind rosters, and the worker roster.
// It drives weighted selection for both new items and workers.
//
// Probabilities are recomputed whenever a roster changes: each entry's share
// is weight / total roster weight, so shares always sum to 1 for a non-empty
// roster with positive total weight.
type Belt struct {
	slots []KindID

	genKinds []*Kind // insertion order; selection ties break on it
	genProbs []float64
	finished []*Kind
	kinds    map[KindID]*Kind

	workers       []*Worker
	workerProbs   []float64
	remainingMass float64

	src Source
}

func NewBelt(slotCount int, src Source) (*Belt, error) {
	if slotCount <= 0 {
		return nil, fmt.Errorf("belt: slot count must be positive, got %d", slotCount)
	}
	if src == nil {
		return nil, fmt.Errorf("belt: nil random source")
	}
	b := &Belt{
		slots:         make([]KindID, slotCount),
		kinds:         map[KindID]*Kind{},
		remainingMass: 1.0,
		src:           src,
	}
	for i := range b.slots {
		b.slots[i] = EmptyID
	}
	return b, nil
}

// RegisterGenKind adds a kind to the generation roster and recomputes the
// per-kind generation probabilities.
func (b *Belt) RegisterGenKind(k *Kind) error {
	if k == nil || k.ID == "" {
		return fmt.Errorf("belt: generation kind without id")
	}
	if k.Weight < 0 {
		return fmt.Errorf("belt: kind %s: negative weight %d", k.ID, k.Weight)
	}
	if prev, ok := b.kinds[k.ID]; ok && prev != k {
		return fmt.Errorf("belt: kind %s registered twice with distinct definitions", k.ID)
	}
	b.kinds[k.ID] = k
	b.genKinds = append(b.genKinds, k)
	b.recomputeGenProbs()
	return nil
}

// RegisterFinishedKind adds a kind assembled from components.
func (b *Belt) RegisterFinishedKind(k *Kind) error {
	if k == nil || k.ID == "" {
		return fmt.Errorf("belt: finished kind without id")
	}
	if len(k.Components) == 0 {
		return fmt.Errorf("belt: finished kind %s has no required components", k.ID)
	}
	if k.BuildTicks <= 0 {
		return fmt.Errorf("belt: finished kind %s: build ticks must be positive, got %d", k.ID, k.BuildTicks)
	}
	for _, c := range k.Components {
		if _, ok := b.kinds[c]; !ok {
			return fmt.Errorf("belt: finished kind %s requires unknown component %s", k.ID, c)
		}
	}
	if prev, ok := b.kinds[k.ID]; ok && prev != k {
		return fmt.Errorf("belt: kind %s registered twice with distinct definitions", k.ID)
	}
	b.kinds[k.ID] = k
	b.finished = append(b.finished, k)
	return nil
}

// RegisterWorker adds a worker and recomputes the static per-worker shares.
func (b *Belt) RegisterWorker(w *Worker) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("belt: worker without id")
	}
	if w.Weight < 0 {
		return fmt.Errorf("belt: worker %s: negative weight %d", w.ID, w.Weight)
	}
	if w.Pos < 0 || w.Pos >= len(b.slots) {
		return fmt.Errorf("belt: worker %s: position %d outside belt of %d slots", w.ID, w.Pos, len(b.slots))
	}
	w.Left = EmptyID
	w.Right = EmptyID
	b.workers = append(b.workers, w)
	b.recomputeWorkerProbs()
	return nil
}

// Validate checks the invariants that can only be judged once registration
// is complete: each roster that exists must carry positive probability mass.
func (b *Belt) Validate() error {
	if len(b.genKinds) == 0 {
		return fmt.Errorf("belt: empty generation roster")
	}
	if totalWeight := b.totalGenWeight(); totalWeight == 0 {
		return fmt.Errorf("belt: generation roster has zero total weight")
	}
	if len(b.workers) == 0 {
		return fmt.Errorf("belt: empty worker roster")
	}
	total := 0
	for _, w := range b.workers {
		total += w.Weight
	}
	if total == 0 {
		return fmt.Errorf("belt: worker roster has zero total weight")
	}
	return nil
}

func (b *Belt) totalGenWeight() int {
	total := 0
	for _, k := range b.genKinds {
		total += k.Weight
	}
	return total
}

func (b *Belt) recomputeGenProbs() {
	total := b.totalGenWeight()
	b.genProbs = make([]float64, len(b.genKinds))
	if total == 0 {
		return
	}
	for i, k := range b.genKinds {
		b.genProbs[i] = float64(k.Weight) / float64(total)
	}
}

func (b *Belt) recomputeWorkerProbs() {
	total := 0
	for _, w := range b.workers {
		total += w.Weight
	}
	b.workerProbs = make([]float64, len(b.workers))
	if total == 0 {
		return
	}
	for i, w := range b.workers {
		b.workerProbs[i] = float64(w.Weight) / float64(total)
	}
}

// Advance shifts all slot contents n positions toward the exit. The last n
// occupants are counted off the belt before anything moves; the first n
// slots become empty. Advancing defines the step boundary: every worker's
// acted flag and the worker-selection mass are reset here.
func (b *Belt) Advance(n int) {
	if n <= 0 {
		return
	}
	if n > len(b.slots) {
		n = len(b.slots)
	}
	for i := len(b.slots) - n; i < len(b.slots); i++ {
		if b.slots[i] == EmptyID {
			continue
		}
		if k := b.kinds[b.slots[i]]; k != nil {
			k.collected++
		}
	}
	for i := len(b.slots) - 1; i >= n; i-- {
		b.slots[i] = b.slots[i-n]
	}
	for i := 0; i < n; i++ {
		b.slots[i] = EmptyID
	}
	for _, w := range b.workers {
		w.acted = false
	}
	b.remainingMass = 1.0
}

// GenerateNextItem draws once and selects the kind entering the belt.
// Pure function of the roster and the draw; no kind state is touched.
func (b *Belt) GenerateNextItem() (KindID, error) {
	r := b.src.Next()
	entries := make([]weightedEntry, len(b.genKinds))
	for i := range b.genKinds {
		entries[i] = weightedEntry{index: i, prob: b.genProbs[i]}
	}
	idx, err := pickWeighted(r, entries)
	if err != nil {
		return EmptyID, err
	}
	return b.genKinds[idx].ID, nil
}

// PlaceAtEntry writes the newly generated kind into the entry slot.
func (b *Belt) PlaceAtEntry(id KindID) {
	b.slots[0] = id
}

// PickNextWorker selects one worker without replacement within the current
// step. The draw is scaled by the remaining probability mass so it is
// effectively renormalized over the workers that have not acted yet; each
// worker keeps its static share. The driver calls this once per step, but
// repeated calls before the next Advance keep excluding prior picks.
func (b *Belt) PickNextWorker() (*Worker, error) {
	r := b.src.Next() * b.remainingMass
	entries := make([]weightedEntry, 0, len(b.workers))
	for i, w := range b.workers {
		if w.acted {
			continue
		}
		entries = append(entries, weightedEntry{index: i, prob: b.workerProbs[i]})
	}
	idx, err := pickWeighted(r, entries)
	if err != nil {
		return nil, err
	}
	w := b.workers[idx]
	w.acted = true
	b.remainingMass -= b.workerProbs[idx]
	return w, nil
}

// Slot returns the content of slot i.
func (b *Belt) Slot(i int) KindID { return b.slots[i] }

// WriteSlot writes back a worker's result.
func (b *Belt) WriteSlot(i int, id KindID) { b.slots[i] = id }

// SlotCount returns the fixed number of slots.
func (b *Belt) SlotCount() int { return len(b.slots) }

// Slots returns a copy of the current slot contents, entry first.
func (b *Belt) Slots() []KindID {
	out := make([]KindID, len(b.slots))
	copy(out, b.slots)
	return out
}

// FinishedKinds returns the finished-kind roster in registration order.
func (b *Belt) FinishedKinds() []*Kind { return b.finished }

// GenKinds returns the generation roster in registration order.
func (b *Belt) GenKinds() []*Kind { return b.genKinds }

// Workers returns the worker roster in registration order.
func (b *Belt) Workers() []*Worker { return b.workers }

// GenProbs returns the current per-kind generation probabilities.
func (b *Belt) GenProbs() []float64 { return append([]float64(nil), b.genProbs...) }

// WorkerProbs returns the static per-worker probabilities.
func (b *Belt) WorkerProbs() []float64 { return append([]float64(nil), b.workerProbs...) }

// Counts reports the collected count for every registered kind. Reading it
// never mutates state; two reads without an intervening step are identical.
func (b *Belt) Counts() map[KindID]uint64 {
	out := make(map[KindID]uint64, len(b.kinds))
	for id, k := range b.kinds {
		out[id] = k.collected
	}
	return out
}
