// Package dataset reads the IMD subdivision rainfall CSV
// ("rainfall in india 1901-2015") into cleaned domain rows.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
)

// Column names of the source layout. Aggregate columns (ANNUAL, Jan-Feb, ...) are ignored.
const (
	ColumnCategory = "SUBDIVISION"
	ColumnYear     = "YEAR"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("dataset: missing required column")

// Stats counts what a parse kept and dropped.
type Stats struct {
	Rows        int // data lines read
	Kept        int
	MissingData int // dropped for an empty, NA or NaN monthly value
	Malformed   int // dropped for an unparseable year, value or empty subdivision
}

// Loader reads the dataset from a file path.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader creates a Loader for path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string { return l.path }

// Load opens and parses the dataset file.
func (l *Loader) Load(ctx context.Context) ([]domain.Row, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	rows, stats, err := Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	l.logger.Info("dataset loaded",
		"path", l.path,
		"rows", stats.Rows,
		"kept", stats.Kept,
		"dropped_missing", stats.MissingData,
		"dropped_malformed", stats.Malformed,
	)
	return rows, nil
}

// Parse reads CSV from r. Rows with any missing or unparseable monthly value are
// dropped, never imputed. Subdivision names are trimmed.
func Parse(ctx context.Context, r io.Reader) ([]domain.Row, Stats, error) {
	var stats Stats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, stats, err
	}

	var rows []domain.Row
	for {
		if stats.Rows%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read line %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		row, reason := cols.row(rec)
		switch reason {
		case dropNone:
			stats.Kept++
			rows = append(rows, row)
		case dropMissing:
			stats.MissingData++
		case dropMalformed:
			stats.Malformed++
		}
	}
	return rows, stats, nil
}

type columns struct {
	category, year int
	months         [12]int
}

func resolveColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		idx[strings.ToUpper(h)] = i
	}

	var c columns
	var missing []string
	lookup := func(name string) int {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}
	c.category = lookup(ColumnCategory)
	c.year = lookup(ColumnYear)
	for _, m := range domain.Months {
		c.months[m.Index()] = lookup(m.String())
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return c, nil
}

type dropReason int

const (
	dropNone dropReason = iota
	dropMissing
	dropMalformed
)

func (c columns) row(rec []string) (domain.Row, dropReason) {
	field := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	row := domain.Row{Category: field(c.category)}
	if row.Category == "" {
		return row, dropMalformed
	}
	year, err := strconv.Atoi(field(c.year))
	if err != nil {
		return row, dropMalformed
	}
	row.Year = year

	reason := dropNone
	for m, i := range c.months {
		raw := field(i)
		if isMissing(raw) {
			reason = dropMissing
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsInf(v, 0) {
			return row, dropMalformed
		}
		row.Values[m] = v
	}
	return row, reason
}

func isMissing(s string) bool {
	switch strings.ToUpper(s) {
	case "", "NA", "N/A", "NAN", "NULL":
		return true
	}
	return false
}
