package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"beltline.dev/internal/sim/catalogs"
	"beltline.dev/internal/sim/encoding"
	"beltline.dev/internal/sim/line"
)

// A snapshot is a point-in-time capture of the full line state, written as a
// zstd stream: one JSON header line for cheap inspection, then a gob body.
// Belt slots are stored as an RLE over kind-palette indices; the palette is
// embedded so a snapshot stays decodable after catalog edits.

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Step    uint64 `json:"step"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed       int64 `json:"seed"`
	SlotCount  int   `json:"slot_count"`
	Steps      int   `json:"steps"`
	StepRateHz int   `json:"step_rate_hz"`

	KindPalette []string `json:"kind_palette"`
	SlotsRLE    string   `json:"slots_rle"`

	Workers []WorkerV1        `json:"workers"`
	Counts  map[string]uint64 `json:"counts"`

	Digest string `json:"digest"`
}

type WorkerV1 struct {
	ID        string `json:"id"`
	Pos       int    `json:"pos"`
	Weight    int    `json:"weight"`
	Left      string `json:"left"`
	Right     string `json:"right"`
	Countdown int    `json:"countdown"`
	Holding   string `json:"holding,omitempty"`
}

// Capture builds a snapshot of the line's current state. Must be called from
// the goroutine driving the step loop.
func Capture(l *line.Line, cats *catalogs.Catalogs) SnapshotV1 {
	cfg := l.Config()
	belt := l.Belt()

	ids := make([]uint16, 0, belt.SlotCount())
	for _, s := range belt.Slots() {
		ids = append(ids, cats.Kinds.Index[string(s)])
	}

	workers := make([]WorkerV1, 0, len(belt.Workers()))
	for _, w := range belt.Workers() {
		wv := WorkerV1{
			ID:        w.ID,
			Pos:       w.Pos,
			Weight:    w.Weight,
			Left:      string(w.Left),
			Right:     string(w.Right),
			Countdown: w.Countdown,
		}
		if h := w.Holding(); h != nil {
			wv.Holding = string(h.ID)
		}
		workers = append(workers, wv)
	}

	counts := map[string]uint64{}
	for id, n := range l.Counts() {
		counts[string(id)] = n
	}

	return SnapshotV1{
		Header:      Header{Version: 1, RunID: cfg.RunID, Step: l.CurrentStep()},
		Seed:        cfg.Seed,
		SlotCount:   cfg.SlotCount,
		Steps:       cfg.Steps,
		StepRateHz:  cfg.StepRateHz,
		KindPalette: append([]string(nil), cats.Kinds.Palette...),
		SlotsRLE:    encoding.EncodeRLE(ids),
		Workers:     workers,
		Counts:      counts,
		Digest:      l.StateDigest(),
	}
}

// Slots decodes the RLE slot run back into kind ids, entry first.
func (s SnapshotV1) Slots() ([]string, error) {
	ids, err := encoding.DecodeRLE(s.SlotsRLE)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if int(id) >= len(s.KindPalette) {
			return nil, fmt.Errorf("palette index %d out of range", id)
		}
		out = append(out, s.KindPalette[id])
	}
	return out, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
