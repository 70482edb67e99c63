package activity

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"reel/internal/config"
)

// Actions recorded in the activity log.
const (
	ActionUpload     = "UPLOAD"
	ActionEditFork   = "EDIT_POST"
	ActionEditUpdate = "EDIT_PUT"
	ActionThumbnails = "THUMBNAILS"
	ActionPreview    = "PREVIEW"
	ActionDelete     = "DELETE"
)

// Entry is one recorded action against a project.
type Entry struct {
	ID         int64
	ProjectID  string
	Action     string
	Detail     string
	ClientInfo string
	CreatedAt  time.Time
}

// Store is an append-only activity log backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the activity database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "activity.db")
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
CREATE TABLE IF NOT EXISTS activity (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id TEXT NOT NULL,
    action TEXT NOT NULL,
    detail TEXT,
    client_info TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_project ON activity(project_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create activity schema: %w", err)
	}
	return nil
}

// Record appends one entry. Failures are the caller's to decide on; the
// pipelines log and continue since the log is advisory.
func (s *Store) Record(ctx context.Context, projectID, action, detail, clientInfo string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (project_id, action, detail, client_info, created_at) VALUES (?, ?, ?, ?, ?)`,
		projectID, action, detail, clientInfo, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// List returns entries for one project, newest first.
func (s *Store) List(ctx context.Context, projectID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, action, detail, client_info, created_at
         FROM activity WHERE project_id = ? ORDER BY id DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.Action, &entry.Detail, &entry.ClientInfo, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			entry.CreatedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
