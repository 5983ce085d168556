// Package store provides SQLite-backed persistence for the current session's
// pipeline runs. The store is session-scoped: Reset wipes everything, and no
// run history survives a session reset.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"evoplan/internal/models"
)

// Store provides access to the evoplan SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL for concurrent readers; SQLite still allows only one writer.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		state TEXT NOT NULL,
		outcome TEXT,
		stage_order TEXT NOT NULL,
		resume TEXT,
		iterations INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stage_tasks (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		stage_id TEXT NOT NULL,
		prompt TEXT,
		raw_text TEXT,
		record TEXT,
		status TEXT NOT NULL,
		iteration INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at DATETIME,
		ended_at DATETIME,
		UNIQUE (run_id, stage_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS log_entries (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stage_tasks_run_id ON stage_tasks(run_id);
	CREATE INDEX IF NOT EXISTS idx_log_entries_run_id ON log_entries(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Run Operations ---

// SaveRun upserts a run and its stage tasks.
func (s *Store) SaveRun(run *models.PipelineRun) error {
	stageOrder, err := json.Marshal(run.StageOrder)
	if err != nil {
		return fmt.Errorf("marshal stage order: %w", err)
	}
	var resume []byte
	if run.Resume != nil {
		resume, err = json.Marshal(run.Resume)
		if err != nil {
			return fmt.Errorf("marshal resume input: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, mode, state, outcome, stage_order, resume, iterations, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state,
		   outcome = excluded.outcome,
		   resume = excluded.resume,
		   iterations = excluded.iterations,
		   updated_at = excluded.updated_at`,
		run.ID, run.Mode, run.State, string(run.Outcome), string(stageOrder), nullableString(resume),
		run.Iterations, run.CreatedAt.UTC(), run.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM stage_tasks WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear stage tasks: %w", err)
	}

	for _, task := range run.Tasks {
		var record []byte
		if task.Record != nil {
			record, err = json.Marshal(task.Record)
			if err != nil {
				return fmt.Errorf("marshal record for stage %s: %w", task.StageID, err)
			}
		}
		id := task.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = tx.Exec(
			`INSERT INTO stage_tasks (id, run_id, stage_id, prompt, raw_text, record, status, iteration, error, started_at, ended_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, run.ID, task.StageID, task.Prompt, task.RawText, nullableString(record),
			task.Status, task.Iteration, task.Error, nullableTime(task.StartedAt), nullableTime(task.EndedAt),
		)
		if err != nil {
			return fmt.Errorf("insert stage task %s: %w", task.StageID, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run with its stage tasks. Returns nil when not found.
func (s *Store) GetRun(id string) (*models.PipelineRun, error) {
	run := &models.PipelineRun{Tasks: make(map[string]*models.Task)}
	var outcome sql.NullString
	var stageOrder string
	var resume sql.NullString

	err := s.db.QueryRow(
		`SELECT id, mode, state, outcome, stage_order, resume, iterations, created_at, updated_at FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Mode, &run.State, &outcome, &stageOrder, &resume, &run.Iterations, &run.CreatedAt, &run.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	run.Outcome = models.RunOutcome(outcome.String)
	if err := json.Unmarshal([]byte(stageOrder), &run.StageOrder); err != nil {
		return nil, fmt.Errorf("unmarshal stage order: %w", err)
	}
	if resume.Valid && resume.String != "" {
		var in models.ResumeInput
		if err := json.Unmarshal([]byte(resume.String), &in); err != nil {
			return nil, fmt.Errorf("unmarshal resume input: %w", err)
		}
		run.Resume = &in
	}

	rows, err := s.db.Query(
		`SELECT id, stage_id, prompt, raw_text, record, status, iteration, error, started_at, ended_at
		 FROM stage_tasks WHERE run_id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		task := &models.Task{}
		var record, errText sql.NullString
		var startedAt, endedAt sql.NullTime
		if err := rows.Scan(&task.ID, &task.StageID, &task.Prompt, &task.RawText, &record,
			&task.Status, &task.Iteration, &errText, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan stage task: %w", err)
		}
		if record.Valid && record.String != "" {
			task.Record = json.RawMessage(record.String)
		}
		if errText.Valid {
			task.Error = errText.String
		}
		if startedAt.Valid {
			task.StartedAt = &startedAt.Time
		}
		if endedAt.Valid {
			task.EndedAt = &endedAt.Time
		}
		run.Tasks[task.StageID] = task
	}
	return run, rows.Err()
}

// ListRuns returns all runs without their stage tasks, newest first.
func (s *Store) ListRuns() ([]models.PipelineRun, error) {
	rows, err := s.db.Query(
		`SELECT id, mode, state, outcome, stage_order, iterations, created_at, updated_at FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.PipelineRun
	for rows.Next() {
		var run models.PipelineRun
		var outcome sql.NullString
		var stageOrder string
		if err := rows.Scan(&run.ID, &run.Mode, &run.State, &outcome, &stageOrder, &run.Iterations, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Outcome = models.RunOutcome(outcome.String)
		if err := json.Unmarshal([]byte(stageOrder), &run.StageOrder); err != nil {
			return nil, fmt.Errorf("unmarshal stage order: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Log Operations ---

// AppendLog persists one execution-log entry. Satisfies audit.Sink.
func (s *Store) AppendLog(entry models.LogEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO log_entries (id, run_id, message, timestamp) VALUES (?, ?, ?, ?)`,
		id, entry.RunID, entry.Message, entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// GetLog returns a run's execution log in chronological order.
func (s *Store) GetLog(runID string) ([]models.LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, message, timestamp FROM log_entries WHERE run_id = ? ORDER BY timestamp, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Message, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- Session Operations ---

// Reset wipes the session: all runs, stage tasks, and log entries.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"stage_tasks", "log_entries", "runs"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
