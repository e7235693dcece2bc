// Package registry owns the trained rainfall models, one per (subdivision, month)
// key. A Registry is built once, either by training or by loading a cache blob,
// and is read-only afterwards, so it can be shared by any number of readers.
package registry

import (
	"fmt"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/forest"
)

// Model is a fitted estimator bound to exactly one key.
type Model struct {
	Key       domain.Key
	Estimator *forest.Forest
	TrainedAt time.Time
	TrainSize int
	TestSize  int
}

// Predict returns the forecast for the given year.
func (m *Model) Predict(year int) float64 {
	return m.Estimator.Predict(float64(year))
}

// monthModels holds the models of one category, indexed by Month.Index().
type monthModels [12]*Model

// Registry maps category → month → model.
type Registry struct {
	categories []string
	models     map[string]*monthModels
	count      int
}

func newRegistry() *Registry {
	return &Registry{models: make(map[string]*monthModels)}
}

// add stores m under its key. Categories keep first-added order.
func (r *Registry) add(m *Model) {
	byMonth, ok := r.models[m.Key.Category]
	if !ok {
		byMonth = &monthModels{}
		r.models[m.Key.Category] = byMonth
		r.categories = append(r.categories, m.Key.Category)
	}
	if byMonth[m.Key.Month.Index()] == nil {
		r.count++
	}
	byMonth[m.Key.Month.Index()] = m
}

// Predict forecasts the value for (category, month) in the given year.
func (r *Registry) Predict(category string, month domain.Month, year int) (float64, error) {
	m, err := r.Model(category, month)
	if err != nil {
		return 0, err
	}
	return m.Predict(year), nil
}

// Model returns the trained model for a key.
func (r *Registry) Model(category string, month domain.Month) (*Model, error) {
	byMonth, ok := r.models[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	if !month.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidMonth, uint8(month))
	}
	m := byMonth[month.Index()]
	if m == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKey, domain.Key{Category: category, Month: month})
	}
	return m, nil
}

// Categories returns the registry's categories in first-seen order.
func (r *Registry) Categories() []string {
	out := make([]string, len(r.categories))
	copy(out, r.categories)
	return out
}

// HasCategory reports whether any model exists for category.
func (r *Registry) HasCategory(category string) bool {
	_, ok := r.models[category]
	return ok
}

// Len returns the number of trained models.
func (r *Registry) Len() int {
	return r.count
}

// Keys returns every trained key, ordered by category then month.
func (r *Registry) Keys() []domain.Key {
	out := make([]domain.Key, 0, r.count)
	for _, c := range r.categories {
		for _, m := range r.models[c] {
			if m != nil {
				out = append(out, m.Key)
			}
		}
	}
	return out
}

// orderCategories reorders the categories to follow order. Categories missing
// from order keep their relative position at the end.
func (r *Registry) orderCategories(order []string) {
	out := make([]string, 0, len(r.categories))
	placed := make(map[string]struct{}, len(r.categories))
	for _, c := range order {
		if _, ok := r.models[c]; !ok {
			continue
		}
		if _, dup := placed[c]; dup {
			continue
		}
		placed[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range r.categories {
		if _, ok := placed[c]; !ok {
			out = append(out, c)
		}
	}
	r.categories = out
}
