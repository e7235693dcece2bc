package domain

import "strings"

// Row is one cleaned dataset line: a subdivision, a year and all twelve monthly
// rainfall totals in millimetres, indexed by Month.Index().
type Row struct {
	Category string
	Year     int
	Values   [12]float64
}

// Records flattens the row into one Record per month.
func (r Row) Records() []Record {
	out := make([]Record, 0, len(Months))
	for _, m := range Months {
		out = append(out, Record{
			Category: r.Category,
			Year:     r.Year,
			Month:    m,
			Value:    r.Values[m.Index()],
		})
	}
	return out
}

// FlattenRows converts dataset rows to the flat record stream, preserving order.
func FlattenRows(rows []Row) []Record {
	out := make([]Record, 0, len(rows)*len(Months))
	for _, r := range rows {
		out = append(out, r.Records()...)
	}
	return out
}

// Record is a single (subdivision, year, month, value) observation.
type Record struct {
	Category string  `json:"category"`
	Year     int     `json:"year"`
	Month    Month   `json:"month"`
	Value    float64 `json:"value"`
}

// Key identifies one independently trained model.
type Key struct {
	Category string `json:"category"`
	Month    Month  `json:"month"`
}

// String renders the key as "<category>|<MON>", the form used for seeds and
// message keys.
func (k Key) String() string {
	var b strings.Builder
	b.Grow(len(k.Category) + 4)
	b.WriteString(k.Category)
	b.WriteByte('|')
	b.WriteString(k.Month.String())
	return b.String()
}

// Observation is one (year, value) training pair.
type Observation struct {
	Year  int
	Value float64
}

// TrainingSet holds every observation available for one key.
type TrainingSet []Observation

// Features returns the years as float64 regression inputs.
func (ts TrainingSet) Features() []float64 {
	out := make([]float64, len(ts))
	for i, o := range ts {
		out[i] = float64(o.Year)
	}
	return out
}

// Targets returns the observed values.
func (ts TrainingSet) Targets() []float64 {
	out := make([]float64, len(ts))
	for i, o := range ts {
		out[i] = o.Value
	}
	return out
}

// Categories returns the distinct categories of records in first-seen order.
func Categories(records []Record) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	return out
}
