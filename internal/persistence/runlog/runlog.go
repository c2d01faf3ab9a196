package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"beltline.dev/internal/sim/line"
)

// JSONLZstdWriter appends JSON lines to hourly-rotated zstd files.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// StepLogger writes one JSONL entry per simulation step (compressed).
type StepLogger struct{ w *JSONLZstdWriter }

func NewStepLogger(runDir string) *StepLogger {
	return &StepLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "steps"), "steps")}
}

func (l *StepLogger) WriteStep(v line.StepLogEntry) error { return l.w.Write(v) }
func (l *StepLogger) Close() error                        { return l.w.Close() }

// DrawLogEntry records one uniform draw pulled from the random source.
// A run's full draw sequence is enough to reproduce it exactly.
type DrawLogEntry struct {
	Seq   uint64  `json:"seq"`
	Value float64 `json:"value"`
}

// DrawLogger writes draw JSONL entries (compressed).
type DrawLogger struct {
	w   *JSONLZstdWriter
	mu  sync.Mutex
	seq uint64
}

func NewDrawLogger(runDir string) *DrawLogger {
	return &DrawLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "draws"), "draws")}
}

// Record appends the next draw; safe to hand to line.Recorder as OnDraw.
func (l *DrawLogger) Record(v float64) {
	l.mu.Lock()
	seq := l.seq
	l.seq++
	l.mu.Unlock()
	_ = l.w.Write(DrawLogEntry{Seq: seq, Value: v})
}

func (l *DrawLogger) Close() error { return l.w.Close() }
