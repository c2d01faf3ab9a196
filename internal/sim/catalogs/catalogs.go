package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Catalogs holds the static definitions a production line is wired from:
// the item kinds that may appear on the belt and the worker roster.
type Catalogs struct {
	Kinds   KindCatalog
	Workers WorkerCatalog
}

type KindCatalog struct {
	// Order preserves the file order of definitions; roster registration
	// follows it, which is what makes selection tie-breaks stable.
	Order   []string
	Palette []string
	Index   map[string]uint16
	Defs    map[string]KindDef

	PaletteDigest string
	DefsDigest    string
}

type KindDef struct {
	ID         string   `json:"id"`
	GenWeight  int      `json:"gen_weight,omitempty"`
	Components []string `json:"components,omitempty"`
	BuildTicks int      `json:"build_ticks,omitempty"`
}

// Finished reports whether the kind is assembled from components.
func (d KindDef) Finished() bool { return len(d.Components) > 0 }

type WorkerCatalog struct {
	Defs   []WorkerDef // file order
	Digest string
}

type WorkerDef struct {
	ID     string `json:"id"`
	Pos    int    `json:"pos"`
	Weight int    `json:"weight"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadKinds(filepath.Join(configDir, "kinds.json"), &c.Kinds); err != nil {
		return nil, err
	}
	if err := loadWorkers(filepath.Join(configDir, "workers.json"), &c.Workers); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadKinds(path string, out *KindCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []KindDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("kinds.json: %w", err)
	}
	out.Defs = map[string]KindDef{}
	out.Order = make([]string, 0, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("kinds.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("kinds.json: duplicate id %s", d.ID)
		}
		if d.GenWeight < 0 {
			return fmt.Errorf("kinds.json: %s: negative gen_weight", d.ID)
		}
		if d.Finished() && d.BuildTicks <= 0 {
			return fmt.Errorf("kinds.json: %s: finished kind needs positive build_ticks", d.ID)
		}
		out.Defs[d.ID] = d
		out.Order = append(out.Order, d.ID)
	}

	for _, d := range out.Defs {
		for _, comp := range d.Components {
			ref, ok := out.Defs[comp]
			if !ok {
				return fmt.Errorf("kinds.json: %s requires unknown component %s", d.ID, comp)
			}
			if ref.Finished() {
				return fmt.Errorf("kinds.json: %s requires %s, which is itself a finished kind", d.ID, comp)
			}
		}
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure EMPTY exists and is palette id 0.
	if _, ok := out.Defs["EMPTY"]; !ok {
		return fmt.Errorf("kinds.json: missing EMPTY")
	}
	ids = append([]string{"EMPTY"}, filterOut(ids, "EMPTY")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadWorkers(path string, out *WorkerCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []WorkerDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("workers.json: %w", err)
	}
	seen := map[string]struct{}{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("workers.json: empty id")
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("workers.json: duplicate id %s", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.Weight < 0 {
			return fmt.Errorf("workers.json: %s: negative weight", d.ID)
		}
		if d.Pos < 0 {
			return fmt.Errorf("workers.json: %s: negative pos", d.ID)
		}
	}
	out.Defs = defs
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
