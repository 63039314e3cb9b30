package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/weather"
)

func calmReading(now time.Time) *weather.Reading {
	return &weather.Reading{
		Timestamp:       now,
		TemperatureF:    70,
		HumidityPercent: 50,
		WindSpeedMph:    5,
		WindDirection:   "NW",
		PressureMb:      1013,
		VisibilityMiles: 10,
		Conditions:      weather.CondClear,
		UVIndex:         4,
	}
}

func TestEvaluateCalmReadingFiresNothing(t *testing.T) {
	engine := NewEngine(6 * time.Hour)
	fired := engine.Evaluate(calmReading(time.Now().UTC()), DefaultThresholds())
	assert.Empty(t, fired)
}

func TestEvaluateHighTemperature(t *testing.T) {
	engine := NewEngine(6 * time.Hour)
	r := calmReading(time.Now().UTC())
	r.TemperatureF = 97

	fired := engine.Evaluate(r, DefaultThresholds())
	require.Len(t, fired, 1)

	a := fired[0]
	assert.Equal(t, CategoryTemperature, a.Category)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Contains(t, a.Message, "97.0")
	assert.NotEmpty(t, a.Recommendations)
	assert.Contains(t, a.AffectedServices, "shelter")
	assert.NotEmpty(t, a.ID)
}

func TestEvaluateExtremeSuppressesHigh(t *testing.T) {
	engine := NewEngine(6 * time.Hour)

	tests := []struct {
		name     string
		mutate   func(r *weather.Reading)
		category Category
		severity Severity
	}{
		{
			name:     "temperature above 100",
			mutate:   func(r *weather.Reading) { r.TemperatureF = 105 },
			category: CategoryTemperature,
			severity: SeverityExtreme,
		},
		{
			name:     "temperature below 10",
			mutate:   func(r *weather.Reading) { r.TemperatureF = 5 },
			category: CategoryTemperature,
			severity: SeverityExtreme,
		},
		{
			name:     "extreme precipitation",
			mutate:   func(r *weather.Reading) { r.PrecipitationInches = 1.5 },
			category: CategoryPrecipitation,
			severity: SeverityExtreme,
		},
		{
			name:     "extreme wind",
			mutate:   func(r *weather.Reading) { r.WindSpeedMph = 55 },
			category: CategoryWind,
			severity: SeverityExtreme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := calmReading(time.Now().UTC())
			tt.mutate(r)

			fired := engine.Evaluate(r, DefaultThresholds())
			require.Len(t, fired, 1, "exactly one alert per category")
			assert.Equal(t, tt.category, fired[0].Category)
			assert.Equal(t, tt.severity, fired[0].Severity)
		})
	}
}

func TestEvaluateCategoriesFireIndependently(t *testing.T) {
	engine := NewEngine(6 * time.Hour)
	r := calmReading(time.Now().UTC())
	r.TemperatureF = 96
	r.WindSpeedMph = 35
	r.VisibilityMiles = 1.5
	r.UVIndex = 9

	fired := engine.Evaluate(r, DefaultThresholds())
	require.Len(t, fired, 4)

	categories := make(map[Category]Severity)
	for _, a := range fired {
		categories[a.Category] = a.Severity
	}
	assert.Equal(t, SeverityHigh, categories[CategoryTemperature])
	assert.Equal(t, SeverityHigh, categories[CategoryWind])
	assert.Equal(t, SeverityMedium, categories[CategoryVisibility])
	assert.Equal(t, SeverityMedium, categories[CategoryUV])
}

func TestEvaluateCustomThresholds(t *testing.T) {
	engine := NewEngine(6 * time.Hour)
	thresholds := DefaultThresholds()
	thresholds.TemperatureHigh = 80

	r := calmReading(time.Now().UTC())
	r.TemperatureF = 85

	fired := engine.Evaluate(r, thresholds)
	require.Len(t, fired, 1)
	assert.Equal(t, CategoryTemperature, fired[0].Category)
}

func TestPurgeExpiresStaleAlerts(t *testing.T) {
	engine := NewEngine(6 * time.Hour)
	now := time.Now().UTC()

	alerts := []Alert{
		{ID: "old", Timestamp: now.Add(-7 * time.Hour)},
		{ID: "recent", Timestamp: now.Add(-1 * time.Hour)},
		{ID: "fresh", Timestamp: now},
	}

	kept := engine.Purge(alerts, now)
	require.Len(t, kept, 2)
	assert.Equal(t, "recent", kept[0].ID)
	assert.Equal(t, "fresh", kept[1].ID)
}

func TestThresholdsApply(t *testing.T) {
	thresholds := DefaultThresholds()

	applied := thresholds.Apply(map[string]float64{
		"temperature_high": 90,
		"wind_extreme":     45,
		"bogus_key":        1,
	})

	assert.ElementsMatch(t, []string{"temperature_high", "wind_extreme"}, applied)
	assert.Equal(t, 90.0, thresholds.TemperatureHigh)
	assert.Equal(t, 45.0, thresholds.WindExtreme)
	assert.Equal(t, 20.0, thresholds.TemperatureLow)
}
