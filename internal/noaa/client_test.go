package noaa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/time/rate"

	"skywatch/internal/weather"
)

const pointsBody = `{
	"properties": {
		"gridId": "BOI", "gridX": 133, "gridY": 86, "cwa": "BOI",
		"relativeLocation": {"properties": {"city": "Boise", "state": "ID"}}
	}
}`

const gridpointBody = `{
	"properties": {
		"temperature":      {"values": [{"value": 25.0}]},
		"relativeHumidity": {"values": [{"value": 42.0}]},
		"windSpeed":        {"values": [{"value": 5.0}]},
		"windDirection":    {"values": [{"value": 270.0}]},
		"pressure":         {"values": [{"value": 101325.0}]},
		"visibility":       {"values": [{"value": 16093.0}]}
	}
}`

const forecastBody = `{
	"properties": {"periods": [{"shortForecast": "Partly Cloudy"}]}
}`

const alertsBody = `{
	"features": [{
		"properties": {
			"id": "urn:oid:2.49.0.1.840.0.abc",
			"event": "Red Flag Warning",
			"severity": "Severe",
			"certainty": "Likely",
			"urgency": "Expected",
			"headline": "Red Flag Warning issued",
			"description": "Critical fire weather conditions.",
			"areaDesc": "Lower Treasure Valley; Boise Mountains",
			"effective": "2026-08-26T10:00:00-06:00",
			"expires": "2026-08-26T20:00:00-06:00",
			"senderName": "NWS Boise ID",
			"status": "Actual",
			"messageType": "Alert"
		}
	}]
}`

// newTestClient points a client at the test server with no rate limiting
// and no retry backoff.
func newTestClient(serverURL string) *Client {
	c := NewClient("skywatch-test/1.0")
	c.SetBaseURL(serverURL)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.retryDelay = time.Millisecond
	return c
}

func TestResolveLocation(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/points/43.6150,-116.2023", r.URL.Path)
		assert.Equal(t, "skywatch-test/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte(pointsBody))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	loc, err := c.ResolveLocation(context.Background(), 43.6150, -116.2023)
	require.NoError(t, err)

	assert.Equal(t, "BOI", loc.GridID)
	assert.Equal(t, 133, loc.GridX)
	assert.Equal(t, 86, loc.GridY)
	assert.Equal(t, "Boise", loc.City)
	assert.Equal(t, "ID", loc.State)

	// Second resolution for the same coordinates hits the cache.
	_, err = c.ResolveLocation(context.Background(), 43.6150, -116.2023)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestCurrentReadingConvertsUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gridpoints/BOI/133,86":
			w.Write([]byte(gridpointBody))
		case "/gridpoints/BOI/133,86/forecast":
			w.Write([]byte(forecastBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	loc := &Location{GridID: "BOI", GridX: 133, GridY: 86}

	reading, err := c.CurrentReading(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, 77.0, reading.TemperatureF)  // 25°C
	assert.Equal(t, 42.0, reading.HumidityPercent)
	assert.Equal(t, 11.2, reading.WindSpeedMph)  // 5 m/s
	assert.Equal(t, "W", reading.WindDirection)  // 270°
	assert.Equal(t, 1013.3, reading.PressureMb)  // 101325 Pa
	assert.Equal(t, 10.0, reading.VisibilityMiles) // 16093 m
	assert.Equal(t, "Partly Cloudy", reading.Conditions)
	assert.Equal(t, weather.SourceLive, reading.Source)
	assert.NoError(t, reading.Validate())
}

func TestCurrentReadingDefaultsMissingLayers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gridpoints/BOI/133,86":
			w.Write([]byte(`{"properties": {}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	loc := &Location{GridID: "BOI", GridX: 133, GridY: 86}

	reading, err := c.CurrentReading(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, 70.0, reading.TemperatureF)
	assert.Equal(t, 50.0, reading.HumidityPercent)
	assert.Equal(t, "N", reading.WindDirection)
	assert.Equal(t, 1013.0, reading.PressureMb)
	assert.Equal(t, 10.0, reading.VisibilityMiles)
	assert.Equal(t, "Unknown", reading.Conditions)
}

func TestActiveAdvisories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alerts/active", r.URL.Path)
		assert.Equal(t, "43.6150,-116.2023", r.URL.Query().Get("point"))
		w.Write([]byte(alertsBody))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	advisories, err := c.ActiveAdvisories(context.Background(), 43.6150, -116.2023)
	require.NoError(t, err)
	require.Len(t, advisories, 1)

	a := advisories[0]
	assert.Equal(t, "urn:oid:2.49.0.1.840.0.abc", a.ID)
	assert.Equal(t, "Red Flag Warning", a.Event)
	assert.Equal(t, []string{"Lower Treasure Valley", "Boise Mountains"}, a.Areas)
	assert.True(t, a.Severe())
}

func TestThrottledRetriedExactlyOnce(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(alertsBody))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	advisories, err := c.ActiveAdvisories(context.Background(), 43.6150, -116.2023)
	require.NoError(t, err)
	assert.Len(t, advisories, 1)
	assert.Equal(t, int32(2), requests.Load())
}

func TestSustainedThrottlingFails(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ActiveAdvisories(context.Background(), 43.6150, -116.2023)
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, int32(2), requests.Load())
}

func TestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ResolveLocation(context.Background(), 43.6150, -116.2023)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeocode(t *testing.T) {
	tests := []struct {
		place string
		ok    bool
	}{
		{"Boise, ID", true},
		{"boise,idaho", true},
		{"Seattle, WA", true},
		{"New York, NY", true},
		{"Atlantis, XX", false},
		{"NoComma", false},
	}

	for _, tt := range tests {
		_, _, ok := Geocode(tt.place)
		assert.Equal(t, tt.ok, ok, tt.place)
	}

	lat, lon, ok := Geocode("Boise, ID")
	require.True(t, ok)
	assert.Equal(t, 43.6150, lat)
	assert.Equal(t, -116.2023, lon)
}
