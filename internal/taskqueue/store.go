package taskqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"reel/internal/config"
)

// Store persists jobs in SQLite and hands them out one claimer at a time.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    project_id TEXT NOT NULL,
    payload TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL,
    next_run_at TEXT NOT NULL,
    last_error TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(status, next_run_at);
CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create queue schema: %w", err)
	}
	return nil
}

// Enqueue inserts a pending job runnable immediately. maxRetries bounds
// automatic re-executions beyond the initial run.
func (s *Store) Enqueue(ctx context.Context, kind, projectID string, payload any, maxRetries int) (*Job, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (kind, project_id, payload, status, attempts, max_retries, next_run_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		kind, projectID, string(encoded), StatusPending, maxRetries,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("enqueue job id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// Claim atomically takes the oldest runnable job, marking it running and
// bumping its attempt counter. Returns nil when nothing is runnable.
func (s *Store) Claim(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM jobs
             WHERE status IN (?, ?) AND next_run_at <= ?
             ORDER BY next_run_at ASC, id ASC LIMIT 1`,
			StatusPending, StatusFailed, now,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select runnable job: %w", err)
		}

		result, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?
             WHERE id = ? AND status IN (?, ?)`,
			StatusRunning, now, id, StatusPending, StatusFailed,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim job %d: %w", id, err)
		}
		if affected == 0 {
			// Lost the race to another worker; try the next candidate.
			continue
		}
		return s.GetJob(ctx, id)
	}
}

// ReclaimInterrupted returns jobs stranded in running status to pending,
// runnable immediately. A crash or shutdown mid-attempt leaves its claim
// behind; a restarted dispatcher calls this before polling so those jobs
// are picked up again instead of staying claimed forever.
func (s *Store) ReclaimInterrupted(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, next_run_at = ?, updated_at = ? WHERE status = ?`,
		StatusPending, now, now, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim interrupted jobs: %w", err)
	}
	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim interrupted jobs: %w", err)
	}
	return reclaimed, nil
}

// MarkCompleted finishes a job permanently.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, StatusCompleted, "", time.Time{})
}

// MarkFailed schedules the job for another attempt after the delay.
func (s *Store) MarkFailed(ctx context.Context, id int64, lastError string, retryAt time.Time) error {
	return s.setStatus(ctx, id, StatusFailed, lastError, retryAt)
}

// MarkExhausted retires the job permanently with its final error.
func (s *Store) MarkExhausted(ctx context.Context, id int64, lastError string) error {
	return s.setStatus(ctx, id, StatusExhausted, lastError, time.Time{})
}

func (s *Store) setStatus(ctx context.Context, id int64, status Status, lastError string, retryAt time.Time) error {
	now := time.Now().UTC()
	next := now
	if !retryAt.IsZero() {
		next = retryAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
		status, lastError, next.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("mark job %d %s: %w", id, status, err)
	}
	return nil
}

// GetJob fetches one job by id, or nil when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, project_id, payload, status, attempts, max_retries, next_run_at, last_error, created_at, updated_at
         FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ListRecent returns the newest jobs up to limit.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, project_id, payload, status, attempts, max_retries, next_run_at, last_error, created_at, updated_at
         FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListForProject returns jobs for one project, newest first.
func (s *Store) ListForProject(ctx context.Context, projectID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, project_id, payload, status, attempts, max_retries, next_run_at, last_error, created_at, updated_at
         FROM jobs WHERE project_id = ? ORDER BY id DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list project jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	job := &Job{}
	var (
		payload   sql.NullString
		lastError sql.NullString
		nextRun   string
		createdAt string
		updatedAt string
		status    string
	)
	err := row.Scan(&job.ID, &job.Kind, &job.ProjectID, &payload, &status, &job.Attempts,
		&job.MaxRetries, &nextRun, &lastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	if payload.Valid {
		job.Payload = json.RawMessage(payload.String)
	}
	job.LastError = lastError.String
	job.NextRunAt = parseTimeString(nextRun)
	job.CreatedAt = parseTimeString(createdAt)
	job.UpdatedAt = parseTimeString(updatedAt)
	return job, nil
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
