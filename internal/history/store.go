package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one convert or watch session.
type Run struct {
	ID        string
	Started   time.Time
	Finished  time.Time
	Strategy  string
	Profile   string
	Images    int
	Succeeded int
	Failed    int
	Cancelled bool
}

// Entry is the recorded outcome of one image.
type Entry struct {
	RunID    string
	Image    string
	Title    string
	Profile  string
	Outcome  string
	Reason   string
	Outputs  []string
	Segments int
	Bytes    int64
	Started  time.Time
	Finished time.Time
}

// Store persists runs and per-image results in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database at path and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a run row.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, strategy, profile, images) VALUES (?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.Started), run.Strategy, run.Profile, run.Images,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the run's closing tallies.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, images = ?, succeeded = ?, failed = ?, cancelled = ? WHERE id = ?`,
		formatTime(run.Finished), run.Images, run.Succeeded, run.Failed, boolToInt(run.Cancelled), run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", run.ID)
	}
	return nil
}

// RecordResult appends an image outcome to its run.
func (s *Store) RecordResult(ctx context.Context, e Entry) error {
	outputs, err := json.Marshal(e.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (
            run_id, image, title, profile, outcome, reason, outputs_json,
            segments, bytes, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Image, nullableString(e.Title), e.Profile, e.Outcome, nullableString(e.Reason), string(outputs),
		e.Segments, e.Bytes, formatTime(e.Started), formatTime(e.Finished),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Succeeded reports whether image already converted successfully with profile.
func (s *Store) Succeeded(ctx context.Context, image, profile string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM results WHERE image = ? AND profile = ? AND outcome = ?`,
		image, profile, OutcomeSucceeded,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query succeeded: %w", err)
	}
	return count > 0, nil
}

// OutcomeSucceeded is the stored outcome for a fully converted image.
const OutcomeSucceeded = "succeeded"

// Runs returns the most recent runs first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, strategy, profile, images, succeeded, failed, cancelled
              FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			started   string
			finished  sql.NullString
			cancelled int
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Strategy, &run.Profile,
			&run.Images, &run.Succeeded, &run.Failed, &cancelled); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Started = parseTime(started)
		if finished.Valid {
			run.Finished = parseTime(finished.String)
		}
		run.Cancelled = cancelled != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Results returns the entries of one run in processing order.
func (s *Store) Results(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, image, title, profile, outcome, reason, outputs_json, segments, bytes, started_at, finished_at
         FROM results WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			title    sql.NullString
			reason   sql.NullString
			outputs  sql.NullString
			started  string
			finished string
		)
		if err := rows.Scan(&e.RunID, &e.Image, &title, &e.Profile, &e.Outcome, &reason, &outputs,
			&e.Segments, &e.Bytes, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		e.Title = title.String
		e.Reason = reason.String
		if outputs.Valid && outputs.String != "" {
			if err := json.Unmarshal([]byte(outputs.String), &e.Outputs); err != nil {
				return nil, fmt.Errorf("decode outputs: %w", err)
			}
		}
		e.Started = parseTime(started)
		e.Finished = parseTime(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
