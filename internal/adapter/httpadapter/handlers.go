package httpadapter

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	"github.com/goccy/go-json"
)

type categoryResponse struct {
	Name      string   `json:"name"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	PlaceName string   `json:"place_name,omitempty"`
}

type categoriesResponse struct {
	Categories []categoryResponse `json:"categories"`
}

type forecastResponse struct {
	Category   string       `json:"category"`
	Month      domain.Month `json:"month"`
	Year       int          `json:"year"`
	RainfallMM float64      `json:"rainfall_mm"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	f := s.current()
	if f == nil {
		writeError(w, http.StatusServiceUnavailable, "model registry is not ready")
		return
	}

	names := f.ListCategories()
	resp := categoriesResponse{Categories: make([]categoryResponse, 0, len(names))}

	if withGeo, _ := strconv.ParseBool(r.URL.Query().Get("geo")); withGeo && s.geocoder != nil {
		for _, loc := range domain.LocateCategories(r.Context(), names, s.region, s.geocoder, s.logger) {
			c := categoryResponse{Name: loc.Name, PlaceName: loc.PlaceName}
			if loc.GeoSource == "forward" {
				lat, lon := loc.Lat, loc.Lon
				c.Lat, c.Lon = &lat, &lon
			}
			resp.Categories = append(resp.Categories, c)
		}
	} else {
		for _, n := range names {
			resp.Categories = append(resp.Categories, categoryResponse{Name: n})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	f := s.current()
	if f == nil {
		writeError(w, http.StatusServiceUnavailable, "model registry is not ready")
		return
	}

	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	monthLabel := q.Get("month")
	yearRaw := q.Get("year")
	if category == "" || monthLabel == "" || yearRaw == "" {
		writeError(w, http.StatusBadRequest, "category, month and year are required")
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearRaw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}

	value, err := f.Forecast(category, monthLabel, year)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	// Forecast already validated the label.
	month, _ := domain.ParseMonth(monthLabel)
	writeJSON(w, http.StatusOK, forecastResponse{
		Category:   category,
		Month:      month,
		Year:       year,
		RainfallMM: value,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidMonth), errors.Is(err, domain.ErrInvalidYear):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownCategory), errors.Is(err, domain.ErrUnknownKey):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
