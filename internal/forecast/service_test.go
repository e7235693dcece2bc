package forecast_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forecast"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forest"
	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *forecast.Service {
	t.Helper()
	var rows []domain.Row
	for _, c := range []string{"Kerala", "Bihar"} {
		for year := 1901; year <= 1920; year++ {
			row := domain.Row{Category: c, Year: year}
			for _, m := range domain.Months {
				row.Values[m.Index()] = float64(m)*10 + float64(year%5)
			}
			rows = append(rows, row)
		}
	}
	records := domain.FlattenRows(rows)
	categories := domain.Categories(records)
	partitions := domain.Partition(records, categories)
	delete(partitions, domain.Key{Category: "Bihar", Month: domain.February})

	seed := uint64(5)
	tr, err := registry.NewTrainer(registry.TrainerConfig{
		Params:       forest.Params{Trees: 4},
		TestFraction: 0.25,
		Seed:         &seed,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	reg, _, err := tr.TrainAll(context.Background(), categories, partitions)
	require.NoError(t, err)
	return forecast.NewService(reg, observability.NewMetricsForTesting())
}

func TestService_Forecast(t *testing.T) {
	svc := newTestService(t)

	v, err := svc.Forecast("Kerala", "JAN", 2030)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	assert.InDelta(t, 12, v, 3)
}

func TestService_Forecast_LowerCaseMonth(t *testing.T) {
	svc := newTestService(t)

	upper, err := svc.Forecast("Kerala", "JUL", 2030)
	require.NoError(t, err)
	lower, err := svc.Forecast("Kerala", "jul", 2030)
	require.NoError(t, err)
	assert.Equal(t, upper, lower)

	_, err = svc.Forecast("  Kerala ", " Jul ", 2030)
	assert.NoError(t, err)
}

func TestService_Forecast_Errors(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name     string
		category string
		month    string
		year     int
		want     error
	}{
		{"unknown category", "NonexistentRegion", "JAN", 2030, domain.ErrUnknownCategory},
		{"category is case sensitive", "kerala", "JAN", 2030, domain.ErrUnknownCategory},
		{"untrained month", "Bihar", "FEB", 2030, domain.ErrUnknownKey},
		{"bad month", "Kerala", "JANUARY", 2030, domain.ErrInvalidMonth},
		{"empty month", "Kerala", "", 2030, domain.ErrInvalidMonth},
		{"year too small", "Kerala", "JAN", 999, domain.ErrInvalidYear},
		{"year too large", "Kerala", "JAN", 10000, domain.ErrInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Forecast(tt.category, tt.month, tt.year)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Forecast_YearBounds(t *testing.T) {
	svc := newTestService(t)
	for _, year := range []int{forecast.MinYear, forecast.MaxYear} {
		_, err := svc.Forecast("Kerala", "MAR", year)
		assert.NoError(t, err, year)
	}
}

func TestService_ListCategories(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, []string{"Kerala", "Bihar"}, svc.ListCategories())
}
