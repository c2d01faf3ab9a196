package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"beltline.dev/internal/sim/line"
)

// ListLogFiles returns the rotated files for a prefix in chronological
// order (the hour suffix sorts lexicographically).
func ListLogFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func scanFile(path string, fn func(raw []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadDraws loads the complete draw sequence recorded under runDir.
func ReadDraws(runDir string) ([]float64, error) {
	files, err := ListLogFiles(filepath.Join(runDir, "draws"), "draws")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no draw logs under %s", runDir)
	}
	var draws []float64
	var wantSeq uint64
	for _, path := range files {
		err := scanFile(path, func(raw []byte) error {
			var e DrawLogEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			if e.Seq != wantSeq {
				return fmt.Errorf("%s: draw gap: seq=%d want=%d", filepath.Base(path), e.Seq, wantSeq)
			}
			wantSeq++
			draws = append(draws, e.Value)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return draws, nil
}

// ReadSteps loads the step log recorded under runDir.
func ReadSteps(runDir string) ([]line.StepLogEntry, error) {
	files, err := ListLogFiles(filepath.Join(runDir, "steps"), "steps")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no step logs under %s", runDir)
	}
	var steps []line.StepLogEntry
	for _, path := range files {
		err := scanFile(path, func(raw []byte) error {
			var e line.StepLogEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			steps = append(steps, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return steps, nil
}
