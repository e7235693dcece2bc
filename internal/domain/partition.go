package domain

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Partition groups records into one TrainingSet per (category, month) key.
//
// Every category in categories gets all twelve month keys, even when no record
// matches; such keys map to an empty TrainingSet so the trainer can report them.
// Records whose category is not listed are ignored. Observation order follows
// record order.
func Partition(records []Record, categories []string) map[Key]TrainingSet {
	out := make(map[Key]TrainingSet, len(categories)*len(Months))
	for _, c := range categories {
		for _, m := range Months {
			out[Key{Category: c, Month: m}] = TrainingSet{}
		}
	}

	for _, r := range records {
		key := Key{Category: r.Category, Month: r.Month}
		set, ok := out[key]
		if !ok {
			continue
		}
		out[key] = append(set, Observation{Year: r.Year, Value: r.Value})
	}
	return out
}

// Fingerprint hashes the record stream so that a cached registry can be tied to
// the dataset it was trained on. Any change to a category, year, month or value
// changes the result.
func Fingerprint(records []Record) string {
	h := xxhash.New()
	var buf [8]byte
	for _, r := range records {
		_, _ = h.WriteString(r.Category)
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(r.Year)))
		_, _ = h.Write(buf[:])
		_, _ = h.Write([]byte{byte(r.Month)})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.Value))
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
