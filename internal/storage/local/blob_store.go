// Package local writes report artifacts to a directory on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// Dir is the directory reports are written to. It is created if missing.
	Dir string
}

// BlobStore writes artifacts below Dir.
type BlobStore struct {
	dir string
}

// New prepares the output directory and returns a store rooted at it.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("output directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat output directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("output path %s is not a directory", cfg.Dir)
	}
	return &BlobStore{dir: cfg.Dir}, nil
}

// PutObject writes data to name below the output directory and returns the
// file path. The file is staged next to its destination and renamed into
// place, so readers never see a half-written report. An existing file with
// the same name is replaced.
func (s *BlobStore) PutObject(_ context.Context, name string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("object name is required")
	}
	target := filepath.Join(s.dir, name)
	if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(s.dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("object name %q escapes the output directory", name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".report-*")
	if err != nil {
		return "", fmt.Errorf("stage report: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success
	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("move report into place: %w", err)
	}
	return target, nil
}
