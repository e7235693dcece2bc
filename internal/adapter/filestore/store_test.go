package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "models.registry"))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "models.registry")
	s := New(path)

	require.NoError(t, s.Save(context.Background(), []byte("first")))
	require.NoError(t, s.Save(context.Background(), []byte("second")))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "models.registry", entries[0].Name())
}

func TestStore_SaveFailureKeepsOldBlob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.registry")
	s := New(path)
	require.NoError(t, s.Save(context.Background(), []byte("good")))

	// A directory in place of the blob makes the rename fail.
	blocked := New(filepath.Join(dir, "blocked"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blocked", "child"), 0o750))
	assert.Error(t, blocked.Save(context.Background(), []byte("bad")))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("good"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_LoadDirectoryIsError(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestStore_Remove(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "models.registry"))
	require.NoError(t, s.Remove())

	require.NoError(t, s.Save(context.Background(), []byte("x")))
	require.NoError(t, s.Remove())

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(filepath.Join(t.TempDir(), "models.registry"))

	assert.ErrorIs(t, s.Save(ctx, []byte("x")), context.Canceled)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
