package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forest"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const (
	testKerala = "Kerala"
	testBihar  = "Bihar"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(testTime))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func seed(v uint64) *uint64 { return &v }

func testConfig(s uint64) TrainerConfig {
	return TrainerConfig{
		Params:       forest.Params{Trees: 8, MinSamplesSplit: 2, MinSamplesLeaf: 1},
		TestFraction: 0.25,
		Seed:         seed(s),
		Workers:      4,
	}
}

func newTestTrainer(t *testing.T, cfg TrainerConfig) *Trainer {
	t.Helper()
	tr, err := NewTrainer(cfg, discardLogger())
	require.NoError(t, err)
	return tr
}

// testRecords builds 40 years of synthetic rainfall for two subdivisions.
func testRecords() []domain.Record {
	var rows []domain.Row
	for _, c := range []string{testKerala, testBihar} {
		base := 100.0
		if c == testBihar {
			base = 40
		}
		for year := 1901; year <= 1940; year++ {
			row := domain.Row{Category: c, Year: year}
			for _, m := range domain.Months {
				row.Values[m.Index()] = base + float64(m)*12 + float64((year*7+int(m))%11)
			}
			rows = append(rows, row)
		}
	}
	return domain.FlattenRows(rows)
}

func testPartitions() ([]string, map[domain.Key]domain.TrainingSet) {
	records := testRecords()
	categories := domain.Categories(records)
	return categories, domain.Partition(records, categories)
}

func trainTestRegistry(t *testing.T) *Registry {
	t.Helper()
	categories, parts := testPartitions()
	reg, _, err := newTestTrainer(t, testConfig(42)).TrainAll(context.Background(), categories, parts)
	require.NoError(t, err)
	return reg
}

// --- mocks ---

type memStore struct {
	mu      sync.Mutex
	blob    []byte
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.blob == nil {
		return nil, domain.ErrBlobNotFound
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *memStore) Save(_ context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.blob = append([]byte(nil), blob...)
	m.saves++
	return nil
}

var errDiskFull = errors.New("disk full")
