package line

import "errors"

// ErrSelectionExhausted signals that a weighted-selection draw landed in no
// bucket: empty roster, zero probability mass, or a floating-point edge at
// the top of the range. Callers treat it as a reportable anomaly for the
// current step, never as a silent skip.
var ErrSelectionExhausted = errors.New("weighted selection exhausted")

// weightedEntry pairs a roster index with its share of probability mass.
type weightedEntry struct {
	index int
	prob  float64
}

// pickWeighted returns the index carried by the first entry whose cumulative
// probability, summed in list order, reaches r. List order is roster
// insertion order; ties are resolved by that stable ordering alone.
func pickWeighted(r float64, entries []weightedEntry) (int, error) {
	sum := 0.0
	for _, e := range entries {
		sum += e.prob
		if sum >= r {
			return e.index, nil
		}
	}
	return 0, ErrSelectionExhausted
}
