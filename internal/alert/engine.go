package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"skywatch/internal/metrics"
	"skywatch/internal/weather"
)

// Category classifies a local alert.
type Category string

const (
	CategoryTemperature   Category = "temperature"
	CategoryPrecipitation Category = "precipitation"
	CategoryWind          Category = "wind"
	CategoryVisibility    Category = "visibility"
	CategoryUV            Category = "uv"
)

// Severity orders alerts by urgency.
type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityExtreme Severity = "extreme"
)

// Alert is a locally generated threshold alert. It stays in the active list
// until its creation timestamp ages past the retention window.
type Alert struct {
	ID               string    `json:"alert_id"`
	Timestamp        time.Time `json:"timestamp"`
	Category         Category  `json:"alert_type"`
	Severity         Severity  `json:"severity"`
	Message          string    `json:"message"`
	Recommendations  []string  `json:"recommendations"`
	AffectedServices []string  `json:"affected_services"`
}

// Thresholds configures when readings fire alerts. Field names match the
// keys accepted by partial threshold updates.
type Thresholds struct {
	TemperatureHigh      float64 `json:"temperature_high"`
	TemperatureLow       float64 `json:"temperature_low"`
	PrecipitationHeavy   float64 `json:"precipitation_heavy"`
	PrecipitationExtreme float64 `json:"precipitation_extreme"`
	WindHigh             float64 `json:"wind_high"`
	WindExtreme          float64 `json:"wind_extreme"`
	VisibilityLow        float64 `json:"visibility_low"`
	UVExtreme            float64 `json:"uv_extreme"`
}

// DefaultThresholds returns the stock community-services thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureHigh:      95.0, // °F
		TemperatureLow:       20.0, // °F
		PrecipitationHeavy:   0.5,  // inches/hour
		PrecipitationExtreme: 1.0,  // inches/hour
		WindHigh:             30.0, // mph
		WindExtreme:          50.0, // mph
		VisibilityLow:        2.0,  // miles
		UVExtreme:            8,
	}
}

// Apply merges a partial threshold map, ignoring unknown keys, and returns
// the keys that were applied.
func (t *Thresholds) Apply(partial map[string]float64) []string {
	fields := map[string]*float64{
		"temperature_high":      &t.TemperatureHigh,
		"temperature_low":       &t.TemperatureLow,
		"precipitation_heavy":   &t.PrecipitationHeavy,
		"precipitation_extreme": &t.PrecipitationExtreme,
		"wind_high":             &t.WindHigh,
		"wind_extreme":          &t.WindExtreme,
		"visibility_low":        &t.VisibilityLow,
		"uv_extreme":            &t.UVExtreme,
	}

	var applied []string
	for key, value := range partial {
		if field, ok := fields[key]; ok {
			*field = value
			applied = append(applied, key)
		}
	}
	return applied
}

// Engine evaluates readings against thresholds and expires stale alerts.
type Engine struct {
	retention time.Duration
}

// NewEngine creates an engine with the given alert retention window.
func NewEngine(retention time.Duration) *Engine {
	return &Engine{retention: retention}
}

// Evaluate checks one reading against the thresholds, independently per
// category. Within a category the extreme threshold suppresses the high
// one; categories fire independently of each other.
func (e *Engine) Evaluate(r *weather.Reading, t Thresholds) []Alert {
	var fired []Alert

	switch {
	case r.TemperatureF >= t.TemperatureHigh:
		fired = append(fired, temperatureAlert(r, true))
	case r.TemperatureF <= t.TemperatureLow:
		fired = append(fired, temperatureAlert(r, false))
	}

	switch {
	case r.PrecipitationInches >= t.PrecipitationExtreme:
		fired = append(fired, precipitationAlert(r, SeverityExtreme))
	case r.PrecipitationInches >= t.PrecipitationHeavy:
		fired = append(fired, precipitationAlert(r, SeverityHigh))
	}

	switch {
	case r.WindSpeedMph >= t.WindExtreme:
		fired = append(fired, windAlert(r, SeverityExtreme))
	case r.WindSpeedMph >= t.WindHigh:
		fired = append(fired, windAlert(r, SeverityHigh))
	}

	if r.VisibilityMiles <= t.VisibilityLow {
		fired = append(fired, visibilityAlert(r))
	}

	if float64(r.UVIndex) >= t.UVExtreme {
		fired = append(fired, uvAlert(r))
	}

	for _, a := range fired {
		metrics.AlertsFired.WithLabelValues(string(a.Category), string(a.Severity)).Inc()
	}
	return fired
}

// Purge returns the alerts still inside the retention window. Runs every
// cycle whether or not anything fired.
func (e *Engine) Purge(alerts []Alert, now time.Time) []Alert {
	cutoff := now.Add(-e.retention)
	kept := alerts[:0:0]
	for _, a := range alerts {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

func newAlertID(category Category, qualifier string) string {
	return fmt.Sprintf("%s_%s_%s", category, qualifier, uuid.NewString())
}

func temperatureAlert(r *weather.Reading, high bool) Alert {
	severity := SeverityHigh
	if (high && r.TemperatureF > 100) || (!high && r.TemperatureF < 10) {
		severity = SeverityExtreme
	}

	var qualifier, message string
	var recommendations []string
	if high {
		qualifier = "high"
		message = fmt.Sprintf("Extreme heat warning: %.1f°F", r.TemperatureF)
		recommendations = []string{
			"Open cooling centers for vulnerable populations",
			"Increase hydration stations at outdoor events",
			"Consider rescheduling outdoor activities",
			"Check on elderly and homeless individuals",
		}
	} else {
		qualifier = "low"
		message = fmt.Sprintf("Extreme cold warning: %.1f°F", r.TemperatureF)
		recommendations = []string{
			"Open warming centers immediately",
			"Conduct wellness checks on homeless population",
			"Prepare for increased shelter demand",
			"Check heating systems in facilities",
		}
	}

	return Alert{
		ID:              newAlertID(CategoryTemperature, qualifier),
		Timestamp:       r.Timestamp,
		Category:        CategoryTemperature,
		Severity:        severity,
		Message:         message,
		Recommendations: recommendations,
		AffectedServices: []string{
			"shelter", "outreach", "outdoor_events", "transportation",
		},
	}
}

func precipitationAlert(r *weather.Reading, severity Severity) Alert {
	qualifier := "heavy"
	if severity == SeverityExtreme {
		qualifier = "extreme"
	}

	recommendations := []string{
		"Monitor for flooding in low-lying areas",
		"Prepare emergency transportation",
		"Check drainage systems around facilities",
		"Consider postponing outdoor events",
	}
	if severity == SeverityExtreme {
		recommendations = append(recommendations,
			"Activate emergency response protocols",
			"Prepare evacuation routes",
			"Coordinate with emergency services",
		)
	}

	return Alert{
		ID:        newAlertID(CategoryPrecipitation, qualifier),
		Timestamp: r.Timestamp,
		Category:  CategoryPrecipitation,
		Severity:  severity,
		Message: fmt.Sprintf("%s precipitation: %.2f\" per hour",
			titleCase(qualifier), r.PrecipitationInches),
		Recommendations: recommendations,
		AffectedServices: []string{
			"transportation", "outdoor_events", "facility_operations",
		},
	}
}

func windAlert(r *weather.Reading, severity Severity) Alert {
	qualifier := "high"
	if severity == SeverityExtreme {
		qualifier = "extreme"
	}

	recommendations := []string{
		"Secure outdoor equipment and signage",
		"Check building integrity",
		"Avoid outdoor activities",
		"Monitor for power outages",
	}
	if severity == SeverityExtreme {
		recommendations = append(recommendations,
			"Consider facility evacuation if necessary",
			"Prepare for extended power outages",
			"Coordinate with emergency services",
		)
	}

	return Alert{
		ID:        newAlertID(CategoryWind, qualifier),
		Timestamp: r.Timestamp,
		Category:  CategoryWind,
		Severity:  severity,
		Message: fmt.Sprintf("%s winds: %.1f mph from %s",
			titleCase(qualifier), r.WindSpeedMph, r.WindDirection),
		Recommendations: recommendations,
		AffectedServices: []string{
			"facility_operations", "outdoor_events", "transportation",
		},
	}
}

func visibilityAlert(r *weather.Reading) Alert {
	return Alert{
		ID:        newAlertID(CategoryVisibility, "low"),
		Timestamp: r.Timestamp,
		Category:  CategoryVisibility,
		Severity:  SeverityMedium,
		Message:   fmt.Sprintf("Low visibility conditions: %.1f miles", r.VisibilityMiles),
		Recommendations: []string{
			"Use caution with transportation services",
			"Increase lighting at outdoor facilities",
			"Consider delaying non-essential travel",
			"Enhance safety protocols for outdoor staff",
		},
		AffectedServices: []string{
			"transportation", "outreach", "outdoor_events",
		},
	}
}

func uvAlert(r *weather.Reading) Alert {
	return Alert{
		ID:        newAlertID(CategoryUV, "extreme"),
		Timestamp: r.Timestamp,
		Category:  CategoryUV,
		Severity:  SeverityMedium,
		Message:   fmt.Sprintf("Extreme UV levels: Index %d", r.UVIndex),
		Recommendations: []string{
			"Provide sunscreen at outdoor events",
			"Ensure shaded areas are available",
			"Limit prolonged outdoor exposure",
			"Educate staff about UV protection",
		},
		AffectedServices: []string{
			"outdoor_events", "outreach", "recreation",
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
