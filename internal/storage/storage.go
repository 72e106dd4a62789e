package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidName = errors.New("invalid name")
)

const maxNameLen = 128

// Workspace groups stored Ruby files under a caller-chosen id.
type Workspace struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// File is a stored source file. Content is omitted from listings.
type File struct {
	Workspace string    `json:"workspace"`
	Name      string    `json:"name"`
	Content   string    `json:"content,omitempty"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence interface for workspaces and their files.
type Store interface {
	// CreateWorkspace inserts a workspace if it does not exist yet.
	CreateWorkspace(ctx context.Context, id string) (*Workspace, error)

	// WriteFile creates or replaces a file, creating the workspace as needed.
	WriteFile(ctx context.Context, workspace, name, content string) (*File, error)

	// ReadFile returns a file with its content or ErrNotFound.
	ReadFile(ctx context.Context, workspace, name string) (*File, error)

	// ListFiles returns the files of a workspace ordered by name, without content.
	ListFiles(ctx context.Context, workspace string) ([]File, error)

	// DeleteFile removes a file or returns ErrNotFound.
	DeleteFile(ctx context.Context, workspace, name string) error

	// Close releases resources.
	Close() error
}

// ValidateName checks a workspace id or file name. Names are plain path
// segments: no separators, no parent references.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLen)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains \"..\"", ErrInvalidName, name)
	}
	return nil
}
