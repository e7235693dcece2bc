package domain

import (
	"context"
	"log/slog"
)

// CategoryLocation is a category name with optional coordinates for map display.
type CategoryLocation struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
	PlaceName  string  `json:"place_name,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	GeoSource  string  `json:"geo_source,omitempty"` // "forward", "none", "failed"
}

// LocateCategories attaches coordinates to each category name, preserving order.
// If geocoder is nil every entry carries the name only. A failed or empty lookup
// degrades that entry to the bare name; it never fails the listing.
func LocateCategories(ctx context.Context, categories []string, region string, geocoder Geocoder, logger *slog.Logger) []CategoryLocation {
	out := make([]CategoryLocation, len(categories))
	for i, name := range categories {
		out[i] = CategoryLocation{Name: name}
		if geocoder == nil {
			continue
		}

		result, err := geocoder.ForwardGeocode(ctx, name, region)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"category", name,
				"region", region,
				"error", err,
			)
			out[i].GeoSource = "failed"
			continue
		}
		if result.Lat == 0 && result.Lon == 0 {
			out[i].GeoSource = "none"
			continue
		}
		out[i].Lat = result.Lat
		out[i].Lon = result.Lon
		out[i].PlaceName = result.PlaceName
		out[i].Confidence = result.Confidence
		out[i].GeoSource = "forward"
	}
	return out
}
