package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "123 Orchard Road", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"lat":"37.5665","lon":"126.9780"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	coords, err := client.Geocode(context.Background(), "123 Orchard Road")
	require.NoError(t, err)
	assert.InDelta(t, 37.5665, coords.Latitude, 1e-9)
	assert.InDelta(t, 126.9780, coords.Longitude, 1e-9)
}

func TestGeocodeNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	_, err := client.Geocode(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGeocodeEmptyAddress(t *testing.T) {
	client := NewClient("http://unused", time.Second)
	_, err := client.Geocode(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGeocodeBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	_, err := client.Geocode(context.Background(), "somewhere")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResult)
}
