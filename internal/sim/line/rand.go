package line

import (
	"math/rand"
	"time"
)

// Source supplies uniform draws in [0,1). It is the only source of
// nondeterminism in the simulation: given a fixed draw sequence the rest of
// the step is fully reproducible.
type Source interface {
	Next() float64
}

type seededSource struct {
	r *rand.Rand
}

func (s *seededSource) Next() float64 { return s.r.Float64() }

// NewSeededSource returns a Source backed by its own generator instance.
// No process-global state is touched.
func NewSeededSource(seed int64) Source {
	return &seededSource{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSource returns a time-seeded Source for production runs where no
// explicit seed was configured.
func NewTimeSource() Source {
	return NewSeededSource(time.Now().UnixNano())
}

// Scripted replays a fixed sequence of draws, cycling when exhausted.
// Tests and replays use it to pin the simulation to a known trajectory.
type Scripted struct {
	draws []float64
	i     int
}

func NewScripted(draws ...float64) *Scripted {
	return &Scripted{draws: draws}
}

func (s *Scripted) Next() float64 {
	if len(s.draws) == 0 {
		return 0
	}
	v := s.draws[s.i]
	s.i = (s.i + 1) % len(s.draws)
	return v
}

// Recorder forwards draws from an underlying Source and reports each one to
// OnDraw. The server uses it to write the draw log that cmd/replay consumes.
type Recorder struct {
	Src    Source
	OnDraw func(v float64)
}

func (r *Recorder) Next() float64 {
	v := r.Src.Next()
	if r.OnDraw != nil {
		r.OnDraw(v)
	}
	return v
}
