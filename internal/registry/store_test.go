package registry

import (
	"context"
	"testing"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFingerprint = "00c0ffee00c0ffee"

func TestSaveLoad_RoundTrip(t *testing.T) {
	freezeClock(t)
	reg := trainTestRegistry(t)
	store := &memStore{}

	require.NoError(t, Save(context.Background(), store, reg, testFingerprint))
	loaded, err := Load(context.Background(), store, testFingerprint)
	require.NoError(t, err)

	assert.Equal(t, reg.Categories(), loaded.Categories())
	assert.Equal(t, reg.Keys(), loaded.Keys())
	for _, k := range reg.Keys() {
		want, _ := reg.Model(k.Category, k.Month)
		got, err := loaded.Model(k.Category, k.Month)
		require.NoError(t, err)
		assert.True(t, want.TrainedAt.Equal(got.TrainedAt))
		assert.Equal(t, want.TrainSize, got.TrainSize)
		assert.Equal(t, want.TestSize, got.TestSize)
		for _, year := range []int{1850, 1901, 1923, 2026, 9999} {
			assert.Equal(t, want.Predict(year), got.Predict(year), "%s %d", k, year)
		}
	}
}

func TestLoad_MissingBlob(t *testing.T) {
	_, err := Load(context.Background(), &memStore{}, testFingerprint)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestLoad_StoreError(t *testing.T) {
	_, err := Load(context.Background(), &memStore{loadErr: errDiskFull}, testFingerprint)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestLoad_CorruptBlobIsMiss(t *testing.T) {
	store := &memStore{}
	require.NoError(t, Save(context.Background(), store, trainTestRegistry(t), testFingerprint))
	good := store.blob

	tests := []struct {
		name string
		blob []byte
	}{
		{"truncated", good[:len(good)/2]},
		{"garbage", []byte("not a registry")},
		{"empty", []byte{}},
		{"plain json", []byte(`{"format":"rainfall-forecast/registry"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), &memStore{blob: tt.blob}, testFingerprint)
			assert.ErrorIs(t, err, domain.ErrCacheMiss)
		})
	}
}

func TestLoad_StaleFingerprint(t *testing.T) {
	store := &memStore{}
	require.NoError(t, Save(context.Background(), store, trainTestRegistry(t), testFingerprint))

	_, err := Load(context.Background(), store, "ffffffffffffffff")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.ErrorIs(t, err, errStale)
}

func TestLoad_EnvelopeChecks(t *testing.T) {
	store := &memStore{}
	require.NoError(t, Save(context.Background(), store, trainTestRegistry(t), testFingerprint))

	tests := []struct {
		name   string
		mutate func(*envelope)
		want   error
	}{
		{"format", func(e *envelope) { e.Format = "something-else" }, errFormat},
		{"version", func(e *envelope) { e.Version = 2 }, errVersion},
		{"checksum", func(e *envelope) { e.Checksum = "0" }, errChecksum},
		{"payload", func(e *envelope) {
			e.Payload = []byte(`{"categories":["Kerala"],"models":[{"category":"Kerala","month":"JAN","train_size":3,"forest":{"trees":[]}}]}`)
			e.Checksum = checksum(e.Payload)
		}, errModelRecord},
		{"unlisted category", func(e *envelope) {
			e.Payload = []byte(`{"categories":[],"models":[{"category":"Kerala","month":"JAN","train_size":3,"forest":{"trees":[{"nodes":[{"v":1}]}]}}]}`)
			e.Checksum = checksum(e.Payload)
		}, errModelRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := rewriteBlob(t, store.blob, tt.mutate)
			_, err := Load(context.Background(), &memStore{blob: blob}, testFingerprint)
			assert.ErrorIs(t, err, domain.ErrCacheMiss)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_NoModelsIsMiss(t *testing.T) {
	store := &memStore{}
	require.NoError(t, Save(context.Background(), store, newRegistry(), testFingerprint))

	_, err := Load(context.Background(), store, testFingerprint)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.ErrorIs(t, err, domain.ErrNoModels)
}

func TestSave_StoreFailure(t *testing.T) {
	reg := trainTestRegistry(t)
	store := &memStore{saveErr: errDiskFull}

	err := Save(context.Background(), store, reg, testFingerprint)
	assert.ErrorIs(t, err, domain.ErrSaveFailure)
	assert.ErrorIs(t, err, errDiskFull)

	_, err = reg.Predict(testKerala, domain.January, 2030)
	assert.NoError(t, err)
}

func TestInspect(t *testing.T) {
	freezeClock(t)
	store := &memStore{}
	require.NoError(t, Save(context.Background(), store, trainTestRegistry(t), testFingerprint))

	s, err := Inspect(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, blobFormat, s.Header.Format)
	assert.Equal(t, blobVersion, s.Header.Version)
	assert.Equal(t, testFingerprint, s.Header.Fingerprint)
	assert.True(t, testTime.Equal(s.Header.CreatedAt))
	assert.Equal(t, len(store.blob), s.Header.Size)
	assert.Equal(t, []string{testKerala, testBihar}, s.Categories)
	assert.Equal(t, 24, s.Models)
	assert.Positive(t, s.Nodes)
	assert.Equal(t, 2, s.PerMonth["SEP"])
}

func TestInspect_Missing(t *testing.T) {
	_, err := Inspect(context.Background(), &memStore{})
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func rewriteBlob(t *testing.T, blob []byte, mutate func(*envelope)) []byte {
	t.Helper()
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	doc, err := dec.DecodeAll(blob, nil)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(doc, &env))
	mutate(&env)
	doc, err = json.Marshal(env)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(doc, nil)
}
