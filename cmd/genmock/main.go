// Command genmock writes a synthetic subdivision rainfall CSV in the layout of
// the IMD "rainfall in india 1901-2015" dataset, for tests and local runs
// without the real file. Output is deterministic for a given seed. After
// writing, the file is read back with the dataset package so the reported
// counts match what the service will train on.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/rainfall_mock.csv \
//	  -subdivisions "Andaman & Nicobar Islands,Bihar,Kerala" \
//	  -years 30 -missing 0.02
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/rainfall-forecast-service/internal/dataset"
	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
)

// climatology is a monsoon-shaped monthly mean in mm, scaled per subdivision.
var climatology = [12]float64{20, 25, 30, 45, 90, 300, 380, 330, 220, 110, 45, 18}

var seasons = []struct {
	name     string
	from, to int // inclusive month indexes
}{
	{"Jan-Feb", 0, 1},
	{"Mar-May", 2, 4},
	{"Jun-Sep", 5, 8},
	{"Oct-Dec", 9, 11},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the CSV fixture")
	subdivisions := flag.String("subdivisions", "Andaman & Nicobar Islands,Bihar,Kerala", "comma-separated subdivision names")
	startYear := flag.Int("start", 1901, "first year")
	years := flag.Int("years", 30, "years per subdivision")
	missing := flag.Float64("missing", 0.02, "probability that a monthly value is written as NA")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	if *years < 1 || *missing < 0 || *missing >= 1 {
		return fmt.Errorf("invalid -years %d or -missing %v", *years, *missing)
	}

	names := splitNames(*subdivisions)
	if len(names) == 0 {
		return errors.New("no subdivisions given")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	if err := writeCSV(*out, names, *startYear, *years, *missing, rng); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	return printStats(*out)
}

func splitNames(raw string) []string {
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func writeCSV(path string, names []string, startYear, years int, missing float64, rng *rand.Rand) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{dataset.ColumnCategory, dataset.ColumnYear}
	for _, m := range domain.Months {
		header = append(header, m.String())
	}
	header = append(header, "ANNUAL")
	for _, s := range seasons {
		header = append(header, s.name)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, name := range names {
		scale := 0.5 + rng.Float64()*2.5
		trend := (rng.Float64() - 0.5) * 0.01 // relative change per year
		for i := range years {
			if err := w.Write(row(name, startYear+i, i, scale, trend, missing, rng)); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func row(name string, year, offset int, scale, trend, missing float64, rng *rand.Rand) []string {
	var values [12]float64
	present := [12]bool{}
	for m := range values {
		mean := climatology[m] * scale * (1 + trend*float64(offset))
		values[m] = math.Max(0, mean*(1+rng.NormFloat64()*0.3))
		present[m] = rng.Float64() >= missing
	}

	rec := []string{name, strconv.Itoa(year)}
	for m, v := range values {
		rec = append(rec, cell(v, present[m]))
	}

	all := true
	var annual float64
	for m, v := range values {
		annual += v
		all = all && present[m]
	}
	rec = append(rec, cell(annual, all))

	for _, s := range seasons {
		sum, ok := 0.0, true
		for m := s.from; m <= s.to; m++ {
			sum += values[m]
			ok = ok && present[m]
		}
		rec = append(rec, cell(sum, ok))
	}
	return rec
}

func cell(v float64, present bool) string {
	if !present {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func printStats(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, stats, err := dataset.Parse(context.Background(), f)
	if err != nil {
		return fmt.Errorf("read back fixture: %w", err)
	}
	log.Printf("rows: %d, kept: %d, dropped (missing): %d, dropped (malformed): %d",
		stats.Rows, stats.Kept, stats.MissingData, stats.Malformed)

	records := domain.FlattenRows(rows)
	categories := domain.Categories(records)
	log.Printf("subdivisions: %d, records: %d, fingerprint: %s",
		len(categories), len(records), domain.Fingerprint(records))
	return nil
}
