// Package filestore keeps the registry cache blob in a single file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"go.trai.ch/zerr"
)

// Store reads and writes one blob file.
type Store struct {
	path string
}

// New creates a Store for the file at path. Nothing is touched until Load or Save.
func New(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

// Path returns the blob file path.
func (s *Store) Path() string { return s.path }

// Load returns the file contents, or domain.ErrBlobNotFound when the file does not exist.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	//nolint:gosec // Path is cleaned and comes from configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, s.path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read cache blob"), "path", s.path)
	}
	return data, nil
}

// Save replaces the file atomically: the blob is written to a temporary file in
// the same directory and renamed over the old one, so readers never observe a
// partial blob.
func (s *Store) Save(ctx context.Context, blob []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create cache directory"), "dir", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create temporary blob"), "dir", dir)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(blob); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write temporary blob"), "path", tmp.Name())
	}
	if err = tmp.Sync(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to sync temporary blob"), "path", tmp.Name())
	}
	if err = tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close temporary blob"), "path", tmp.Name())
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to set blob permissions"), "path", tmp.Name())
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to replace cache blob"), "path", s.path)
	}
	return nil
}

// Remove deletes the blob file. A missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, "failed to remove cache blob"), "path", s.path)
	}
	return nil
}
