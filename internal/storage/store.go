// Package storage keeps uploaded files (digital books and gallery images) on
// the local filesystem under a single root directory.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrTooLarge        = errors.New("file exceeds the upload limit")
	ErrEmpty           = errors.New("file is empty")
	ErrInvalidPath     = errors.New("invalid file path")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// FileInfo describes a stored file. Path is relative to the store root.
type FileInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"-"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// HumanSize formats Size for display, e.g. "2.4 MB".
func (f FileInfo) HumanSize() string {
	if f.Size < 0 {
		return humanize.Bytes(0)
	}
	return humanize.Bytes(uint64(f.Size))
}

// Store is the file storage used by catalog and gallery.
type Store interface {
	// Save writes content under dir with a generated name. Only content whose
	// detected type is in allowed is accepted.
	Save(ctx context.Context, dir string, content io.Reader, maxBytes int64, allowed ...string) (*FileInfo, error)

	// Open returns the file for streaming.
	Open(ctx context.Context, path string) (ReadSeekCloser, *FileInfo, error)

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// Stat retrieves file info without opening the content
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// LocalPath maps a stored path to a filesystem path.
	LocalPath(path string) (string, error)
}

// ReadSeekCloser is what Open returns; http.ServeContent needs Seek.
type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}
