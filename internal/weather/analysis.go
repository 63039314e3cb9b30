package weather

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Analysis errors
var (
	ErrNoData = errors.New("no weather data available")
)

// Trend labels reported by Analyze.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// TemperatureStats summarizes temperature over the analysis window.
type TemperatureStats struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
	Trend   string  `json:"trend"`
}

// HumidityStats summarizes humidity over the analysis window.
type HumidityStats struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
}

// PrecipitationStats summarizes precipitation over the analysis window.
type PrecipitationStats struct {
	Total           float64 `json:"total"`
	MaxHourly       float64 `json:"max_hourly"`
	HoursWithPrecip int     `json:"hours_with_precip"`
}

// WindStats summarizes wind over the analysis window.
type WindStats struct {
	CurrentSpeed     float64 `json:"current_speed"`
	CurrentDirection string  `json:"current_direction"`
	MaxSpeed         float64 `json:"max_speed"`
	AvgSpeed         float64 `json:"avg_speed"`
}

// ConditionStats reports the latest condition and how often each label
// occurred in the window.
type ConditionStats struct {
	Current string         `json:"current"`
	Summary map[string]int `json:"conditions_summary"`
}

// Analysis is the windowed trend report returned to analysis requests.
type Analysis struct {
	Period        string             `json:"period"`
	DataPoints    int                `json:"data_points"`
	Temperature   TemperatureStats   `json:"temperature"`
	Humidity      HumidityStats      `json:"humidity"`
	Precipitation PrecipitationStats `json:"precipitation"`
	Wind          WindStats          `json:"wind"`
	Conditions    ConditionStats     `json:"conditions"`
	ActiveAlerts  int                `json:"alerts_active"`
}

// Analyze computes trend statistics over the readings newer than hoursBack.
// Readings must be in chronological order; the trend compares the final
// value against the first.
func Analyze(readings []Reading, hoursBack int, now time.Time, activeAlerts int) (*Analysis, error) {
	if len(readings) == 0 {
		return nil, ErrNoData
	}

	cutoff := now.Add(-time.Duration(hoursBack) * time.Hour)
	var recent []Reading
	for _, r := range readings {
		if r.Timestamp.After(cutoff) {
			recent = append(recent, r)
		}
	}
	if len(recent) == 0 {
		return nil, fmt.Errorf("%w for last %d hours", ErrNoData, hoursBack)
	}

	first := recent[0]
	last := recent[len(recent)-1]

	tempMin, tempMax, tempSum := first.TemperatureF, first.TemperatureF, 0.0
	humMin, humMax, humSum := first.HumidityPercent, first.HumidityPercent, 0.0
	precipTotal, precipMax := 0.0, 0.0
	wetHours := 0
	windMax, windSum := 0.0, 0.0
	summary := make(map[string]int)

	for _, r := range recent {
		tempMin = math.Min(tempMin, r.TemperatureF)
		tempMax = math.Max(tempMax, r.TemperatureF)
		tempSum += r.TemperatureF

		humMin = math.Min(humMin, r.HumidityPercent)
		humMax = math.Max(humMax, r.HumidityPercent)
		humSum += r.HumidityPercent

		precipTotal += r.PrecipitationInches
		precipMax = math.Max(precipMax, r.PrecipitationInches)
		if r.PrecipitationInches > 0 {
			wetHours++
		}

		windMax = math.Max(windMax, r.WindSpeedMph)
		windSum += r.WindSpeedMph

		summary[r.Conditions]++
	}

	n := float64(len(recent))
	trend := TrendStable
	switch {
	case last.TemperatureF > first.TemperatureF:
		trend = TrendRising
	case last.TemperatureF < first.TemperatureF:
		trend = TrendFalling
	}

	return &Analysis{
		Period:     fmt.Sprintf("Last %d hours", hoursBack),
		DataPoints: len(recent),
		Temperature: TemperatureStats{
			Current: last.TemperatureF,
			Min:     tempMin,
			Max:     tempMax,
			Avg:     round1(tempSum / n),
			Trend:   trend,
		},
		Humidity: HumidityStats{
			Current: last.HumidityPercent,
			Min:     humMin,
			Max:     humMax,
			Avg:     round1(humSum / n),
		},
		Precipitation: PrecipitationStats{
			Total:           round2(precipTotal),
			MaxHourly:       precipMax,
			HoursWithPrecip: wetHours,
		},
		Wind: WindStats{
			CurrentSpeed:     last.WindSpeedMph,
			CurrentDirection: last.WindDirection,
			MaxSpeed:         windMax,
			AvgSpeed:         round1(windSum / n),
		},
		Conditions: ConditionStats{
			Current: last.Conditions,
			Summary: summary,
		},
		ActiveAlerts: activeAlerts,
	}, nil
}
