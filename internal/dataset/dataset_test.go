package dataset

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockCSV = "../../data/mock/rainfall_mock.csv"

const header = "SUBDIVISION,YEAR,JAN,FEB,MAR,APR,MAY,JUN,JUL,AUG,SEP,OCT,NOV,DEC,ANNUAL\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoader_MockFixture(t *testing.T) {
	rows, err := NewLoader(mockCSV, discardLogger()).Load(context.Background())
	require.NoError(t, err)

	// 90 data lines, two with a missing month.
	require.Len(t, rows, 88)

	records := domain.FlattenRows(rows)
	assert.Equal(t, []string{"Andaman & Nicobar Islands", "Kerala", "Bihar"}, domain.Categories(records))

	first := rows[0]
	assert.Equal(t, "Andaman & Nicobar Islands", first.Category)
	assert.Equal(t, 1901, first.Year)
	assert.InDelta(t, 46.2, first.Values[domain.January.Index()], 1e-9)
	assert.InDelta(t, 32.1, first.Values[domain.December.Index()], 1e-9)

	for _, r := range rows {
		assert.Equal(t, strings.TrimSpace(r.Category), r.Category)
		assert.False(t, r.Category == "Andaman & Nicobar Islands" && r.Year == 1902, "row with NA kept")
		assert.False(t, r.Category == "Bihar" && r.Year == 1915, "row with blank kept")
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader("testdata/does-not-exist.csv", discardLogger()).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_MissingColumns(t *testing.T) {
	_, _, err := Parse(context.Background(), strings.NewReader("SUBDIVISION,JAN,FEB\nKerala,1,2\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "YEAR")
	assert.Contains(t, err.Error(), "DEC")
}

func TestParse_EmptyInput(t *testing.T) {
	_, _, err := Parse(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParse_DropsIncompleteRows(t *testing.T) {
	input := header +
		"Kerala,1901,1,2,3,4,5,6,7,8,9,10,11,12,78\n" +
		"Kerala,1902,1,2,NA,4,5,6,7,8,9,10,11,12,NA\n" +
		"Kerala,1903,1,2,3,4,5,6,7,8,9,10,11,NaN,\n" +
		"Kerala,1904,1,2,3,4,,6,7,8,9,10,11,12,\n" +
		"Kerala,19x5,1,2,3,4,5,6,7,8,9,10,11,12,78\n" +
		"Kerala,1906,1,2,3,4,5,6,7,8,9,10,11,abc,78\n" +
		",1907,1,2,3,4,5,6,7,8,9,10,11,12,78\n" +
		"  Bihar  ,1901,0.5,2,3,4,5,6,7,8,9,10,11,12\n"

	rows, stats, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, Stats{Rows: 8, Kept: 2, MissingData: 3, Malformed: 3}, stats)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.Row{
		Category: "Kerala",
		Year:     1901,
		Values:   [12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}, rows[0])
	assert.Equal(t, "Bihar", rows[1].Category)
	assert.InDelta(t, 0.5, rows[1].Values[0], 1e-12)
}

func TestParse_ColumnOrderAndCase(t *testing.T) {
	input := "dec,nov,oct,sep,aug,jul,jun,may,apr,mar,feb,jan,year,subdivision\n" +
		"12,11,10,9,8,7,6,5,4,3,2,1,2001,Kerala\n"

	rows, _, err := Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, [12]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, rows[0].Values)
	assert.Equal(t, 2001, rows[0].Year)
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Parse(ctx, strings.NewReader(header+"Kerala,1901,1,2,3,4,5,6,7,8,9,10,11,12,78\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
