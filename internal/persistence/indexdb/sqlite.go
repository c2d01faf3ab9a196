package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"beltline.dev/internal/sim/catalogs"
	"beltline.dev/internal/sim/line"
)

// SQLiteIndex is a read-model index for finished and in-flight runs. Writes
// go through a single writer goroutine; enqueueing never blocks the step
// loop — when the indexer falls behind, entries are dropped and counted
// (the JSONL step log remains the source of truth).
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStepTotal atomic.Uint64
}

type reqKind int

const (
	reqRunStart reqKind = iota + 1
	reqStep
	reqRunFinish
	reqFlush
)

type req struct {
	kind reqKind

	run    RunMeta
	step   stepRow
	finish runFinish
	done   chan struct{}
}

// RunMeta describes one run at start time.
type RunMeta struct {
	RunID         string
	Seed          int64
	Steps         int
	SlotCount     int
	KindsDigest   string
	WorkersDigest string
}

type stepRow struct {
	RunID string
	Entry line.StepLogEntry
}

type runFinish struct {
	RunID       string
	Counts      map[line.KindID]uint64
	FinalDigest string
}

// Stats reports writer-queue health.
type Stats struct {
	DropStepTotal uint64
	QueueDepth    int
	QueueCapacity int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: a fast one-shot run can emit steps much quicker than
		// sqlite commits them.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			slot_count INTEGER NOT NULL,
			kinds_digest TEXT NOT NULL,
			workers_digest TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			final_digest TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS run_counts (
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			generated TEXT,
			worker TEXT,
			anomaly TEXT,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, step)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_anomaly ON steps(run_id, anomaly);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// StartRun records run metadata before the first step.
func (s *SQLiteIndex) StartRun(meta RunMeta) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRunStart, run: meta}:
	default:
	}
}

// WriteStep indexes one step-log entry. Implements line.StepLogger when
// bound to a run via ForRun.
func (s *SQLiteIndex) WriteStep(runID string, entry line.StepLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqStep, step: stepRow{RunID: runID, Entry: entry}}:
	default:
		s.dropStepTotal.Add(1)
	}
	return nil
}

// FinishRun records the final counts and digest of a completed run.
func (s *SQLiteIndex) FinishRun(runID string, counts map[line.KindID]uint64, finalDigest string) {
	if s == nil || s.closed.Load() {
		return
	}
	cp := make(map[line.KindID]uint64, len(counts))
	for k, v := range counts {
		cp[k] = v
	}
	select {
	case s.ch <- req{kind: reqRunFinish, finish: runFinish{RunID: runID, Counts: cp, FinalDigest: finalDigest}}:
	default:
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropStepTotal: s.dropStepTotal.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqRunStart:
			s.execRunStart(r.run)
		case reqStep:
			s.execStep(r.step)
		case reqRunFinish:
			s.execRunFinish(r.finish)
		case reqFlush:
			close(r.done)
		}
	}
}

// Flush blocks until everything enqueued before the call has been applied.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}

func (s *SQLiteIndex) execRunStart(m RunMeta) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, _ = s.db.Exec(
		`INSERT OR REPLACE INTO runs(run_id,seed,steps,slot_count,kinds_digest,workers_digest,started_at)
		 VALUES(?,?,?,?,?,?,?)`,
		m.RunID, m.Seed, m.Steps, m.SlotCount, m.KindsDigest, m.WorkersDigest, now,
	)
}

func (s *SQLiteIndex) execStep(r stepRow) {
	_, _ = s.db.Exec(
		`INSERT OR REPLACE INTO steps(run_id,step,generated,worker,anomaly,digest) VALUES(?,?,?,?,?,?)`,
		r.RunID, r.Entry.Step, string(r.Entry.Generated), r.Entry.Worker, r.Entry.Anomaly, r.Entry.Digest,
	)
}

func (s *SQLiteIndex) execRunFinish(f runFinish) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.Begin()
	if err != nil {
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`UPDATE runs SET finished_at=?, final_digest=? WHERE run_id=?`,
		now, f.FinalDigest, f.RunID,
	); err != nil {
		return
	}
	for kind, count := range f.Counts {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO run_counts(run_id,kind,count) VALUES(?,?,?)`,
			f.RunID, string(kind), count,
		); err != nil {
			return
		}
	}
	_ = tx.Commit()
}

// RunSummary is the queryable result of a finished run.
type RunSummary struct {
	RunID       string
	Seed        int64
	Steps       int
	SlotCount   int
	FinalDigest string
	Counts      map[string]uint64
	Finished    bool
}

// QueryRun reads a run and its final counts back out of the index. It
// flushes the writer queue first so a summary written just before is visible.
func (s *SQLiteIndex) QueryRun(runID string) (RunSummary, error) {
	s.Flush()

	var out RunSummary
	var finishedAt sql.NullString
	var finalDigest sql.NullString
	err := s.db.QueryRow(
		`SELECT run_id, seed, steps, slot_count, finished_at, final_digest FROM runs WHERE run_id=?`,
		runID,
	).Scan(&out.RunID, &out.Seed, &out.Steps, &out.SlotCount, &finishedAt, &finalDigest)
	if err != nil {
		return RunSummary{}, err
	}
	out.Finished = finishedAt.Valid
	out.FinalDigest = finalDigest.String

	rows, err := s.db.Query(`SELECT kind, count FROM run_counts WHERE run_id=?`, runID)
	if err != nil {
		return RunSummary{}, err
	}
	defer rows.Close()
	out.Counts = map[string]uint64{}
	for rows.Next() {
		var kind string
		var count uint64
		if err := rows.Scan(&kind, &count); err != nil {
			return RunSummary{}, err
		}
		out.Counts[kind] = count
	}
	return out, rows.Err()
}

// runLogger binds the index to one run so it satisfies line.StepLogger.
type runLogger struct {
	idx   *SQLiteIndex
	runID string
}

// ForRun returns a line.StepLogger that indexes steps under runID.
func (s *SQLiteIndex) ForRun(runID string) line.StepLogger {
	return &runLogger{idx: s, runID: runID}
}

func (l *runLogger) WriteStep(entry line.StepLogEntry) error {
	return l.idx.WriteStep(l.runID, entry)
}

// MetaFor builds RunMeta from a line config plus catalog digests.
func MetaFor(cfg line.Config, cats *catalogs.Catalogs) RunMeta {
	return RunMeta{
		RunID:         cfg.RunID,
		Seed:          cfg.Seed,
		Steps:         cfg.Steps,
		SlotCount:     cfg.SlotCount,
		KindsDigest:   cats.Kinds.DefsDigest,
		WorkersDigest: cats.Workers.Digest,
	}
}
