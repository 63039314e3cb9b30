package weather

import (
	"errors"
	"math"
	"time"
)

// SourceTag marks the provenance of a reading.
type SourceTag string

const (
	SourceLive      SourceTag = "live"
	SourceSimulated SourceTag = "simulated"
)

// Physical bounds every generated reading must satisfy.
const (
	MinTemperatureF = 0.0
	MaxTemperatureF = 150.0
	MinHumidity     = 0.0
	MaxHumidity     = 100.0
	MinPressureMb   = 900.0
	MaxPressureMb   = 1100.0
	MinVisibilityMi = 0.0
	MaxVisibilityMi = 15.0
	MaxUVIndex      = 11
)

// Validation errors
var (
	ErrTemperatureOutOfRange = errors.New("temperature out of range")
	ErrHumidityOutOfRange    = errors.New("humidity out of range")
	ErrNegativePrecipitation = errors.New("precipitation cannot be negative")
	ErrNegativeWindSpeed     = errors.New("wind speed cannot be negative")
	ErrPressureOutOfRange    = errors.New("pressure out of range")
	ErrVisibilityOutOfRange  = errors.New("visibility out of range")
	ErrUVIndexOutOfRange     = errors.New("uv index out of range")
)

// CompassDirections are the sixteen points used for wind direction.
var CompassDirections = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Reading is one timestamped weather observation or simulated estimate.
type Reading struct {
	Timestamp           time.Time `json:"timestamp"`
	TemperatureF        float64   `json:"temperature_f"`
	HumidityPercent     float64   `json:"humidity_percent"`
	PrecipitationInches float64   `json:"precipitation_inches"`
	WindSpeedMph        float64   `json:"wind_speed_mph"`
	WindDirection       string    `json:"wind_direction"`
	PressureMb          float64   `json:"pressure_mb"`
	VisibilityMiles     float64   `json:"visibility_miles"`
	Conditions          string    `json:"conditions"`
	UVIndex             int       `json:"uv_index"`
	Source              SourceTag `json:"source"`
}

// Validate checks the reading against the physical bounds.
func (r *Reading) Validate() error {
	if r.TemperatureF < MinTemperatureF || r.TemperatureF > MaxTemperatureF {
		return ErrTemperatureOutOfRange
	}
	if r.HumidityPercent < MinHumidity || r.HumidityPercent > MaxHumidity {
		return ErrHumidityOutOfRange
	}
	if r.PrecipitationInches < 0 {
		return ErrNegativePrecipitation
	}
	if r.WindSpeedMph < 0 {
		return ErrNegativeWindSpeed
	}
	if r.PressureMb < MinPressureMb || r.PressureMb > MaxPressureMb {
		return ErrPressureOutOfRange
	}
	if r.VisibilityMiles < MinVisibilityMi || r.VisibilityMiles > MaxVisibilityMi {
		return ErrVisibilityOutOfRange
	}
	if r.UVIndex < 0 || r.UVIndex > MaxUVIndex {
		return ErrUVIndexOutOfRange
	}
	return nil
}

// ClampToBounds forces every numeric field into the physical bounds. Live
// provider data occasionally carries sensor artifacts outside them.
func (r *Reading) ClampToBounds() {
	r.TemperatureF = clamp(r.TemperatureF, MinTemperatureF, MaxTemperatureF)
	r.HumidityPercent = clamp(r.HumidityPercent, MinHumidity, MaxHumidity)
	r.PrecipitationInches = math.Max(0, r.PrecipitationInches)
	r.WindSpeedMph = math.Max(0, r.WindSpeedMph)
	r.PressureMb = clamp(r.PressureMb, MinPressureMb, MaxPressureMb)
	r.VisibilityMiles = clamp(r.VisibilityMiles, MinVisibilityMi, MaxVisibilityMi)
	if r.UVIndex < 0 {
		r.UVIndex = 0
	}
	if r.UVIndex > MaxUVIndex {
		r.UVIndex = MaxUVIndex
	}
}

// DegreesToDirection converts wind direction degrees to a compass point.
func DegreesToDirection(degrees float64) string {
	for degrees < 0 {
		degrees += 360
	}
	index := int(degrees/22.5+0.5) % 16
	return CompassDirections[index]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
