// Package forecast is the prediction boundary: it validates a
// (category, month, year) request and answers it from the model registry.
package forecast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/couchcryptid/rainfall-forecast-service/internal/registry"
)

// Accepted year range.
const (
	MinYear = 1000
	MaxYear = 9999
)

// Outcome labels for the forecasts_total metric.
const (
	OutcomeOK              = "ok"
	OutcomeInvalidMonth    = "invalid_month"
	OutcomeInvalidYear     = "invalid_year"
	OutcomeUnknownCategory = "unknown_category"
	OutcomeUnknownKey      = "unknown_key"
	OutcomeError           = "error"
)

// Service answers forecast requests from a ready registry. It is safe for
// concurrent use.
type Service struct {
	registry *registry.Registry
	metrics  *observability.Metrics
}

// NewService creates a Service over reg.
func NewService(reg *registry.Registry, metrics *observability.Metrics) *Service {
	return &Service{registry: reg, metrics: metrics}
}

// Forecast returns the predicted rainfall in millimetres. The month label is
// matched case-insensitively; the category is trimmed but otherwise exact.
func (s *Service) Forecast(category, month string, year int) (float64, error) {
	v, err := s.forecast(category, month, year)
	s.metrics.Forecasts.WithLabelValues(outcome(err)).Inc()
	return v, err
}

func (s *Service) forecast(category, month string, year int) (float64, error) {
	if year < MinYear || year > MaxYear {
		return 0, fmt.Errorf("%w: %d outside [%d, %d]", domain.ErrInvalidYear, year, MinYear, MaxYear)
	}
	m, err := domain.ParseMonth(month)
	if err != nil {
		return 0, err
	}
	return s.registry.Predict(strings.TrimSpace(category), m, year)
}

// ListCategories returns the categories the registry can forecast, in dataset order.
func (s *Service) ListCategories() []string {
	return s.registry.Categories()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrInvalidMonth):
		return OutcomeInvalidMonth
	case errors.Is(err, domain.ErrInvalidYear):
		return OutcomeInvalidYear
	case errors.Is(err, domain.ErrUnknownCategory):
		return OutcomeUnknownCategory
	case errors.Is(err, domain.ErrUnknownKey):
		return OutcomeUnknownKey
	}
	return OutcomeError
}
