package projects

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

// Store manages project documents backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the project database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "projects.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
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
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    storage_ref TEXT,
    filename TEXT NOT NULL,
    folder TEXT,
    mime_type TEXT,
    original_filename TEXT,
    metadata_json TEXT,
    version INTEGER NOT NULL,
    parent TEXT,
    processing INTEGER NOT NULL DEFAULT 0,
    thumbnails_json TEXT,
    preview_thumbnail_json TEXT,
    url TEXT,
    client_info TEXT,
    create_date TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_parent ON projects(parent);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply projects schema: %w", err)
	}
	return nil
}

// Insert persists a new project document. Lineage invariants are enforced
// here so a malformed version tree can never reach the database.
func (s *Store) Insert(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("project is nil")
	}
	if p.ID == "" {
		return errors.New("project id is empty")
	}
	if err := p.ValidateLineage(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if p.CreateDate.IsZero() {
		p.CreateDate = now
	}
	p.UpdatedAt = now

	metadataJSON, thumbnailsJSON, previewJSON, err := marshalDocumentFields(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO projects (
            id, storage_ref, filename, folder, mime_type, original_filename,
            metadata_json, version, parent, processing, thumbnails_json,
            preview_thumbnail_json, url, client_info, create_date, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		nullableString(p.StorageRef),
		p.Filename,
		nullableString(p.Folder),
		nullableString(p.MimeType),
		nullableString(p.OriginalFilename),
		metadataJSON,
		p.Version,
		nullableString(p.Parent),
		boolToInt(p.Processing),
		thumbnailsJSON,
		previewJSON,
		nullableString(p.URL),
		nullableString(p.ClientInfo),
		p.CreateDate.Format(time.RFC3339Nano),
		p.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetByID fetches a project document by identifier. Returns nil when the
// document does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// Update persists changes to an existing project document as one atomic
// write.
func (s *Store) Update(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("project is nil")
	}
	p.UpdatedAt = time.Now().UTC()

	metadataJSON, thumbnailsJSON, previewJSON, err := marshalDocumentFields(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE projects
         SET storage_ref = ?, filename = ?, folder = ?, mime_type = ?,
             original_filename = ?, metadata_json = ?, version = ?, parent = ?,
             processing = ?, thumbnails_json = ?, preview_thumbnail_json = ?,
             url = ?, client_info = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(p.StorageRef),
		p.Filename,
		nullableString(p.Folder),
		nullableString(p.MimeType),
		nullableString(p.OriginalFilename),
		metadataJSON,
		p.Version,
		nullableString(p.Parent),
		boolToInt(p.Processing),
		thumbnailsJSON,
		previewJSON,
		nullableString(p.URL),
		nullableString(p.ClientInfo),
		p.UpdatedAt.Format(time.RFC3339Nano),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// BeginProcessing atomically flips the processing flag from false to true.
// Returns false when another party already owns the flag. This conditional
// write is the sole mutual-exclusion mechanism for mutating jobs; when
// clearThumbnails is set the stored thumbnail sets are dropped in the same
// statement so a winning thumbnail request observes an empty map.
func (s *Store) BeginProcessing(ctx context.Context, id string, clearThumbnails bool) (bool, error) {
	query := `UPDATE projects SET processing = 1, updated_at = ? WHERE id = ? AND processing = 0`
	if clearThumbnails {
		query = `UPDATE projects SET processing = 1, thumbnails_json = NULL, updated_at = ? WHERE id = ? AND processing = 0`
	}
	res, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return false, fmt.Errorf("begin processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// EndProcessing clears the processing flag without touching other fields.
// Used by rollback paths that must leave the document otherwise untouched.
func (s *Store) EndProcessing(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET processing = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("end processing: %w", err)
	}
	return nil
}

// Delete removes a project document. Returns false when no document existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns project documents ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, offset, limit int) ([]*Project, error) {
	if limit <= 0 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY create_date DESC LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var items []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Children returns the fork documents of a version-1 project.
func (s *Store) Children(ctx context.Context, parentID string) ([]*Project, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+projectColumns+` FROM projects WHERE parent = ? ORDER BY create_date`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var items []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Count returns the total number of project documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}

const projectColumns = "id, storage_ref, filename, folder, mime_type, original_filename, metadata_json, version, parent, processing, thumbnails_json, preview_thumbnail_json, url, client_info, create_date, updated_at"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id          string
		storageRef  sql.NullString
		filename    string
		folder      sql.NullString
		mimeType    sql.NullString
		origName    sql.NullString
		metadata    sql.NullString
		version     int
		parent      sql.NullString
		processing  sql.NullInt64
		thumbnails  sql.NullString
		preview     sql.NullString
		url         sql.NullString
		clientInfo  sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&storageRef,
		&filename,
		&folder,
		&mimeType,
		&origName,
		&metadata,
		&version,
		&parent,
		&processing,
		&thumbnails,
		&preview,
		&url,
		&clientInfo,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	p := &Project{
		ID:               id,
		StorageRef:       storageRef.String,
		Filename:         filename,
		Folder:           folder.String,
		MimeType:         mimeType.String,
		OriginalFilename: origName.String,
		Version:          version,
		Parent:           parent.String,
		Processing:       processing.Valid && processing.Int64 != 0,
		URL:              url.String,
		ClientInfo:       clientInfo.String,
		Thumbnails:       map[string][]Thumbnail{},
	}

	if metadata.Valid && metadata.String != "" {
		var m Metadata
		if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
		p.Metadata = &m
	}
	if thumbnails.Valid && thumbnails.String != "" {
		if err := json.Unmarshal([]byte(thumbnails.String), &p.Thumbnails); err != nil {
			return nil, fmt.Errorf("decode thumbnails for %s: %w", id, err)
		}
	}
	if preview.Valid && preview.String != "" {
		var thumb Thumbnail
		if err := json.Unmarshal([]byte(preview.String), &thumb); err != nil {
			return nil, fmt.Errorf("decode preview thumbnail for %s: %w", id, err)
		}
		p.PreviewThumbnail = &thumb
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		p.CreateDate = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		p.UpdatedAt = updated
	}
	return p, nil
}

func marshalDocumentFields(p *Project) (metadata, thumbnails, preview any, err error) {
	metadata, thumbnails, preview = nil, nil, nil
	if p.Metadata != nil {
		raw, merr := json.Marshal(p.Metadata)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("marshal metadata: %w", merr)
		}
		metadata = string(raw)
	}
	if len(p.Thumbnails) > 0 {
		raw, merr := json.Marshal(p.Thumbnails)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("marshal thumbnails: %w", merr)
		}
		thumbnails = string(raw)
	}
	if p.PreviewThumbnail != nil {
		raw, merr := json.Marshal(p.PreviewThumbnail)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("marshal preview thumbnail: %w", merr)
		}
		preview = string(raw)
	}
	return metadata, thumbnails, preview, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
