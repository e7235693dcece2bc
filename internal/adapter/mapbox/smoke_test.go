//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "KERALA", "India")
	require.NoError(t, err)

	assert.InDelta(t, 10.4, result.Lat, 1.5, "lat should be within Kerala")
	assert.InDelta(t, 76.4, result.Lon, 1.5, "lon should be within Kerala")
	assert.Contains(t, result.FormattedAddress, "Kerala")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ForwardGeocode_MeteorologicalSubdivision(t *testing.T) {
	c := smokeClient(t)

	// Subdivisions such as this one are not administrative units, so any
	// response, including none, is acceptable as long as it is not an error.
	_, err := c.ForwardGeocode(context.Background(), "SUB HIMALAYAN WEST BENGAL & SIKKIM", "India")
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	r1, err := cached.ForwardGeocode(context.Background(), "BIHAR", "India")
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Bihar")

	r2, err := cached.ForwardGeocode(context.Background(), "BIHAR", "India")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
