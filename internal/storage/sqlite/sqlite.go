package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/rubybox/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ storage.Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateWorkspace(ctx context.Context, id string) (*storage.Workspace, error) {
	if err := storage.ValidateName(id); err != nil {
		return nil, err
	}
	if err := s.ensureWorkspace(ctx, id); err != nil {
		return nil, err
	}

	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM workspaces WHERE id = ?`, id).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	return &storage.Workspace{ID: id, CreatedAt: parseTime(createdAt)}, nil
}

func (s *SQLiteStore) ensureWorkspace(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting workspace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WriteFile(ctx context.Context, workspace, name, content string) (*storage.File, error) {
	if err := validate(workspace, name); err != nil {
		return nil, err
	}
	if err := s.ensureWorkspace(ctx, workspace); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_files (workspace_id, name, content, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(workspace_id, name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		workspace, name, content, now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &storage.File{
		Workspace: workspace,
		Name:      name,
		Size:      len(content),
		UpdatedAt: now.Truncate(time.Second),
	}, nil
}

func (s *SQLiteStore) ReadFile(ctx context.Context, workspace, name string) (*storage.File, error) {
	if err := validate(workspace, name); err != nil {
		return nil, err
	}

	f := storage.File{Workspace: workspace, Name: name}
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT content, updated_at FROM workspace_files
		WHERE workspace_id = ? AND name = ?`, workspace, name).Scan(&f.Content, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s/%s: %w", workspace, name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	f.Size = len(f.Content)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, workspace string) ([]storage.File, error) {
	if err := storage.ValidateName(workspace); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, length(CAST(content AS BLOB)), updated_at FROM workspace_files
		WHERE workspace_id = ? ORDER BY name`, workspace)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	files := []storage.File{}
	for rows.Next() {
		f := storage.File{Workspace: workspace}
		var updatedAt string
		if err := rows.Scan(&f.Name, &f.Size, &updatedAt); err != nil {
			return nil, err
		}
		f.UpdatedAt = parseTime(updatedAt)
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, workspace, name string) error {
	if err := validate(workspace, name); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_files WHERE workspace_id = ? AND name = ?`, workspace, name)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file %s/%s: %w", workspace, name, storage.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func validate(workspace, name string) error {
	if err := storage.ValidateName(workspace); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if err := storage.ValidateName(name); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
