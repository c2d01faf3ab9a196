package line

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"beltline.dev/internal/protocol"
)

// ObserverJoin attaches a read-only observer to the run. Observers never
// mutate the simulation; joins and leaves are drained at step boundaries.
type ObserverJoin struct {
	Name string
	Out  chan []byte
	Resp chan protocol.WelcomeMsg
}

type observerState struct {
	out chan []byte
}

// ObserverJoinCh is the channel transports use to attach observers.
func (l *Line) ObserverJoinCh() chan<- ObserverJoin { return l.obsJoin }

// ObserverLeaveCh detaches an observer by id.
func (l *Line) ObserverLeaveCh() chan<- string { return l.obsLeave }

// Run paces the simulation at the configured step rate until the step
// budget is exhausted or the context is canceled. Observer joins/leaves are
// handled between steps so they can never affect determinism.
func (l *Line) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(l.cfg.StepRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case req := <-l.obsJoin:
			l.handleObserverJoin(req)
		case id := <-l.obsLeave:
			delete(l.observers, id)
		case <-ticker.C:
			if l.cfg.Steps > 0 && l.step.Load() >= uint64(l.cfg.Steps) {
				l.broadcast(l.SummaryMsg())
				return nil
			}
			res := l.Step()
			l.broadcast(l.stepMsg(res))
		}
	}
}

// Stop ends the run loop at the next step boundary.
func (l *Line) Stop() { close(l.stop) }

func (l *Line) handleObserverJoin(req ObserverJoin) {
	id := fmt.Sprintf("O%04d", l.nextObsNum.Add(1))
	l.observers[id] = &observerState{out: req.Out}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ObserverID:      id,
		RunParams: protocol.RunParams{
			RunID:      l.cfg.RunID,
			SlotCount:  l.cfg.SlotCount,
			StepRateHz: l.cfg.StepRateHz,
			Steps:      l.cfg.Steps,
			Seed:       l.cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			KindPalette: protocol.DigestRef{
				Digest: l.cats.Kinds.PaletteDigest,
				Count:  len(l.cats.Kinds.Palette),
			},
			KindsDigest:   l.cats.Kinds.DefsDigest,
			WorkersDigest: l.cats.Workers.Digest,
		},
	}
	if req.Resp != nil {
		req.Resp <- welcome
	}
}

func (l *Line) stepMsg(res StepResult) protocol.StepMsg {
	slots := make([]string, 0, l.belt.SlotCount())
	for _, s := range l.belt.Slots() {
		slots = append(slots, string(s))
	}
	workers := make([]protocol.WorkerState, 0, len(l.belt.workers))
	for _, w := range l.belt.workers {
		ws := protocol.WorkerState{
			ID:        w.ID,
			Pos:       w.Pos,
			Left:      string(w.Left),
			Right:     string(w.Right),
			Countdown: w.Countdown,
		}
		if w.holding != nil {
			ws.Holding = string(w.holding.ID)
		}
		workers = append(workers, ws)
	}
	return protocol.StepMsg{
		Type:            protocol.TypeStep,
		ProtocolVersion: protocol.Version,
		Step:            res.Step,
		Slots:           slots,
		Generated:       string(res.Generated),
		Worker:          res.Worker,
		Workers:         workers,
		Counts:          l.countsByString(),
		Anomaly:         res.Anomaly,
		Digest:          l.StateDigest(),
	}
}

// SummaryMsg builds the final belt statistics message for the run.
func (l *Line) SummaryMsg() protocol.SummaryMsg {
	return protocol.SummaryMsg{
		Type:            protocol.TypeSummary,
		ProtocolVersion: protocol.Version,
		RunID:           l.cfg.RunID,
		Steps:           l.step.Load(),
		Counts:          l.countsByString(),
		Digest:          l.StateDigest(),
	}
}

func (l *Line) countsByString() map[string]uint64 {
	counts := l.belt.Counts()
	out := make(map[string]uint64, len(counts))
	for id, n := range counts {
		out[string(id)] = n
	}
	return out
}

func (l *Line) broadcast(msg any) {
	if len(l.observers) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, o := range l.observers {
		sendLatest(o.out, b)
	}
}

// sendLatest delivers b without blocking the step loop: if the observer's
// channel is full, the oldest pending message is dropped first.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
