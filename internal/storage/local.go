package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how much of an upload is read for type detection.
const sniffLen = 3072

// LocalStore stores files under Root.
type LocalStore struct {
	Root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty storage root", ErrInvalidPath)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{Root: abs}, nil
}

// LocalPath resolves path inside Root, rejecting anything that escapes it.
func (s *LocalStore) LocalPath(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "\\") {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.Root, clean), nil
}

// Save streams content into a temp file in the target directory and renames
// it into place once the size and type checks pass.
func (s *LocalStore) Save(ctx context.Context, dir string, content io.Reader, maxBytes int64, allowed ...string) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmpty
	}

	mime := mimetype.Detect(head)
	if len(allowed) > 0 && !mimetype.EqualsAny(mime.String(), allowed...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mime.String())
	}

	targetDir, err := s.LocalPath(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(targetDir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	reader := io.MultiReader(bytes.NewReader(head), content)
	if maxBytes > 0 {
		reader = io.LimitReader(reader, maxBytes+1)
	}
	size, err := io.Copy(tmp, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if maxBytes > 0 && size > maxBytes {
		return nil, ErrTooLarge
	}
	if err := tmp.Sync(); err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	name := uuid.NewString() + mime.Extension()
	final := filepath.Join(targetDir, name)
	if err := os.Rename(tmpName, final); err != nil {
		return nil, fmt.Errorf("failed to move upload into place: %w", err)
	}
	committed = true

	return &FileInfo{
		Name:        name,
		Path:        filepath.ToSlash(filepath.Join(dir, name)),
		Size:        size,
		ContentType: mime.String(),
	}, nil
}

// Open opens a stored file for reading.
func (s *LocalStore) Open(ctx context.Context, path string) (ReadSeekCloser, *FileInfo, error) {
	info, err := s.Stat(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	full, _ := s.LocalPath(path)
	f, err := os.Open(full)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Stat returns file facts, detecting the content type from the file head.
func (s *LocalStore) Stat(ctx context.Context, path string) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.LocalPath(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, ErrInvalidPath
	}

	contentType := "application/octet-stream"
	if mime, err := mimetype.DetectFile(full); err == nil {
		contentType = mime.String()
	}
	return &FileInfo{
		Name:        st.Name(),
		Path:        path,
		Size:        st.Size(),
		ContentType: contentType,
		ModifiedAt:  st.ModTime(),
	}, nil
}

// Delete removes a stored file.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.LocalPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether a stored file is present.
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Stat(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
