// Package badger keeps the registry cache blob as a single key in a BadgerDB
// directory. The database is opened for each call and closed before returning,
// so no handle outlives a Load or Save.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"go.trai.ch/zerr"
)

// blobKey is the only key the store writes.
var blobKey = []byte("registry:blob")

// Store is a one-key BadgerDB blob store.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store for the database directory dir.
func New(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) open() (*badger.DB, error) {
	opts := badger.DefaultOptions(s.dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open badger cache"), "dir", s.dir)
	}
	return db, nil
}

func (s *Store) close(db *badger.DB) {
	if err := db.Close(); err != nil {
		s.logger.Warn("close badger cache", "dir", s.dir, "error", err)
	}
}

// Load returns the stored blob, or domain.ErrBlobNotFound when none was written.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer s.close(db)

	var blob []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrBlobNotFound, s.dir)
		}
		if err != nil {
			return zerr.Wrap(err, "failed to get cache blob")
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Save replaces the stored blob in a single transaction.
func (s *Store) Save(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer s.close(db)

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey, blob)
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write cache blob"), "dir", s.dir)
	}
	return nil
}
