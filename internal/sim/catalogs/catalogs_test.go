package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigs(t *testing.T, kinds, workers string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kinds.json"), []byte(kinds), 0o644); err != nil {
		t.Fatalf("write kinds.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "workers.json"), []byte(workers), 0o644); err != nil {
		t.Fatalf("write workers.json: %v", err)
	}
	return dir
}

const validKinds = `[
  {"id":"COMP_A","gen_weight":50},
  {"id":"COMP_B","gen_weight":50},
  {"id":"EMPTY","gen_weight":50},
  {"id":"PRODUCT_P","components":["COMP_A","COMP_B"],"build_ticks":4}
]`

const validWorkers = `[
  {"id":"W1","pos":1,"weight":1},
  {"id":"W2","pos":1,"weight":1},
  {"id":"W3","pos":2,"weight":1}
]`

func TestLoad_Valid(t *testing.T) {
	dir := writeConfigs(t, validKinds, validWorkers)
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantOrder := []string{"COMP_A", "COMP_B", "EMPTY", "PRODUCT_P"}
	if len(c.Kinds.Order) != len(wantOrder) {
		t.Fatalf("order: got %v", c.Kinds.Order)
	}
	for i, id := range wantOrder {
		if c.Kinds.Order[i] != id {
			t.Fatalf("order[%d]: got %s, want %s", i, c.Kinds.Order[i], id)
		}
	}

	if c.Kinds.Palette[0] != "EMPTY" {
		t.Fatalf("EMPTY must be palette index 0, got %s", c.Kinds.Palette[0])
	}
	if c.Kinds.Index["EMPTY"] != 0 {
		t.Fatalf("EMPTY index: got %d", c.Kinds.Index["EMPTY"])
	}
	for i, id := range c.Kinds.Palette {
		if c.Kinds.Index[id] != uint16(i) {
			t.Fatalf("index mismatch for %s: %d vs %d", id, c.Kinds.Index[id], i)
		}
	}

	if !c.Kinds.Defs["PRODUCT_P"].Finished() {
		t.Fatalf("PRODUCT_P must be finished")
	}
	if c.Kinds.Defs["COMP_A"].Finished() {
		t.Fatalf("COMP_A must be raw")
	}

	if c.Kinds.DefsDigest == "" || c.Kinds.PaletteDigest == "" || c.Workers.Digest == "" {
		t.Fatalf("digests must be populated")
	}
	if len(c.Workers.Defs) != 3 || c.Workers.Defs[0].ID != "W1" {
		t.Fatalf("workers: got %v", c.Workers.Defs)
	}
}

func TestLoad_DigestTracksContent(t *testing.T) {
	a, err := Load(writeConfigs(t, validKinds, validWorkers))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load(writeConfigs(t, validKinds, `[{"id":"W1","pos":0,"weight":2}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Kinds.DefsDigest != b.Kinds.DefsDigest {
		t.Fatalf("identical kinds.json must digest identically")
	}
	if a.Workers.Digest == b.Workers.Digest {
		t.Fatalf("different workers.json must digest differently")
	}
}

func TestLoad_RejectsBadKinds(t *testing.T) {
	cases := map[string]string{
		"duplicate id": `[
		  {"id":"COMP_A","gen_weight":1},
		  {"id":"COMP_A","gen_weight":1},
		  {"id":"EMPTY","gen_weight":1}
		]`,
		"unknown component": `[
		  {"id":"EMPTY","gen_weight":1},
		  {"id":"P","components":["NOPE"],"build_ticks":1}
		]`,
		"finished component": `[
		  {"id":"COMP_A","gen_weight":1},
		  {"id":"EMPTY","gen_weight":1},
		  {"id":"P","components":["COMP_A"],"build_ticks":1},
		  {"id":"Q","components":["P"],"build_ticks":1}
		]`,
		"missing build_ticks": `[
		  {"id":"COMP_A","gen_weight":1},
		  {"id":"EMPTY","gen_weight":1},
		  {"id":"P","components":["COMP_A"]}
		]`,
		"negative gen_weight": `[
		  {"id":"COMP_A","gen_weight":-1},
		  {"id":"EMPTY","gen_weight":1}
		]`,
		"missing EMPTY": `[
		  {"id":"COMP_A","gen_weight":1}
		]`,
	}
	for name, kinds := range cases {
		dir := writeConfigs(t, kinds, validWorkers)
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected load error", name)
		}
	}
}

func TestLoad_RejectsBadWorkers(t *testing.T) {
	cases := map[string]string{
		"duplicate id":    `[{"id":"W1","pos":0,"weight":1},{"id":"W1","pos":1,"weight":1}]`,
		"empty id":        `[{"id":"","pos":0,"weight":1}]`,
		"negative weight": `[{"id":"W1","pos":0,"weight":-1}]`,
		"negative pos":    `[{"id":"W1","pos":-1,"weight":1}]`,
	}
	for name, workers := range cases {
		dir := writeConfigs(t, validKinds, workers)
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected load error", name)
		}
	}
}
