package line

// KindID identifies an item kind. The distinguished EmptyID kind is a
// first-class catalog entry: belt slots and hands always hold a valid KindID,
// so EmptyID is the only representation of absence.
type KindID string

const EmptyID KindID = "EMPTY"

// Kind describes one producible component or finished product.
type Kind struct {
	ID         KindID
	Weight     int
	Components []KindID // required raw kinds; empty for raw kinds
	BuildTicks int      // assembly duration in steps for finished kinds

	collected uint64
}

// Collected reports how many instances of this kind have left the belt.
// Only Belt.Advance mutates it.
func (k *Kind) Collected() uint64 { return k.collected }

// Finished reports whether the kind is assembled from components.
func (k *Kind) Finished() bool { return len(k.Components) > 0 }
