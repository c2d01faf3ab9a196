package line

import "testing"

func TestPickWeighted_CumulativeOrder(t *testing.T) {
	entries := []weightedEntry{{index: 0, prob: 0.5}, {index: 1, prob: 0.5}}

	cases := []struct {
		r    float64
		want int
	}{
		{0.0, 0},
		{0.25, 0},
		{0.49, 0},
		{0.5, 0}, // boundary lands in the first bucket
		{0.51, 1},
		{0.99, 1},
		{1.0, 1},
	}
	for _, c := range cases {
		got, err := pickWeighted(c.r, entries)
		if err != nil {
			t.Fatalf("r=%v: %v", c.r, err)
		}
		if got != c.want {
			t.Fatalf("r=%v: got index %d, want %d", c.r, got, c.want)
		}
	}
}

func TestPickWeighted_IndexPassthrough(t *testing.T) {
	// Entries carry roster indices, not positions in the entries slice;
	// exclusion-based selection depends on that.
	entries := []weightedEntry{{index: 3, prob: 0.5}, {index: 7, prob: 0.5}}
	got, err := pickWeighted(0.9, entries)
	if err != nil {
		t.Fatalf("pickWeighted: %v", err)
	}
	if got != 7 {
		t.Fatalf("got index %d, want 7", got)
	}
}

func TestPickWeighted_Exhausted(t *testing.T) {
	if _, err := pickWeighted(0.0, nil); err != ErrSelectionExhausted {
		t.Fatalf("empty entries: got %v, want ErrSelectionExhausted", err)
	}
	entries := []weightedEntry{{index: 0, prob: 0.3}}
	if _, err := pickWeighted(0.5, entries); err != ErrSelectionExhausted {
		t.Fatalf("draw above total mass: got %v, want ErrSelectionExhausted", err)
	}
}
