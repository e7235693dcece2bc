package registry

import (
	"context"
	"fmt"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
)

// BlobStore persists exactly one opaque cache blob.
type BlobStore interface {
	// Load returns the stored blob or an error wrapping domain.ErrBlobNotFound.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored blob. A failed Save must not leave a partial blob.
	Save(ctx context.Context, blob []byte) error
}

// Load reads and decodes the registry from store. Every failure, including a
// missing, corrupt, incompatible or stale blob, wraps domain.ErrCacheMiss.
func Load(ctx context.Context, store BlobStore, fingerprint string) (*Registry, error) {
	blob, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheMiss, err)
	}
	reg, err := decode(blob, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheMiss, err)
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheMiss, domain.ErrNoModels)
	}
	return reg, nil
}

// Save encodes reg and writes it to store. Failures wrap domain.ErrSaveFailure
// and leave reg untouched.
func Save(ctx context.Context, store BlobStore, reg *Registry, fingerprint string) error {
	blob, err := encode(reg, fingerprint)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSaveFailure, err)
	}
	if err := store.Save(ctx, blob); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSaveFailure, err)
	}
	return nil
}

// Summary describes a stored blob for operators.
type Summary struct {
	Header     Header         `json:"header"`
	Categories []string       `json:"categories"`
	Models     int            `json:"models"`
	Nodes      int            `json:"nodes"`
	PerMonth   map[string]int `json:"models_per_month"`
}

// Inspect summarizes the blob in store without checking its fingerprint.
func Inspect(ctx context.Context, store BlobStore) (*Summary, error) {
	blob, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	env, err := openEnvelope(blob)
	if err != nil {
		return nil, err
	}
	reg, err := decode(blob, "")
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Header: Header{
			Format:      env.Format,
			Version:     env.Version,
			CreatedAt:   env.CreatedAt,
			Fingerprint: env.Fingerprint,
			Checksum:    env.Checksum,
			Size:        len(blob),
		},
		Categories: reg.Categories(),
		Models:     reg.Len(),
		PerMonth:   make(map[string]int),
	}
	for _, k := range reg.Keys() {
		m, _ := reg.Model(k.Category, k.Month)
		s.Nodes += m.Estimator.NodeCount()
		s.PerMonth[k.Month.String()]++
	}
	return s, nil
}
