package weather

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Condition labels, in evaluation priority order.
const (
	CondHeavyRain = "Heavy Rain"
	CondHeavySnow = "Heavy Snow"
	CondRain      = "Rain"
	CondSnow      = "Snow"
	CondFog       = "Fog"
	CondWindy     = "Windy"
	CondHot       = "Hot"
	CondCold      = "Cold"
	CondClear     = "Clear"
)

// Simulator generates realistic weather patterns: stochastic in value,
// deterministic in structure. Safe for concurrent use; the monitoring loop
// and the forecast handler both draw from it.
type Simulator struct {
	mu       sync.Mutex
	baseTemp float64
	rng      *rand.Rand
	now      func() time.Time

	// Slow-drifting state, updated after every draw.
	temperatureTrend float64
	pressureTrend    float64
	stormProbability float64
}

// NewSimulator creates a simulator around the given base temperature.
func NewSimulator(baseTemp float64) *Simulator {
	return NewSimulatorWithSeed(baseTemp, time.Now().UnixNano())
}

// NewSimulatorWithSeed creates a deterministic simulator for tests.
func NewSimulatorWithSeed(baseTemp float64, seed int64) *Simulator {
	return &Simulator{
		baseTemp:         baseTemp,
		rng:              rand.New(rand.NewSource(seed)),
		now:              func() time.Time { return time.Now().UTC() },
		stormProbability: 0.1,
	}
}

// Generate produces a simulated reading hourOffset hours from now. The
// offset shifts both the timestamp and the diurnal temperature curve, so
// successive offsets yield a coherent forecast.
func (s *Simulator) Generate(hourOffset int) *Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	timestamp := now.Add(time.Duration(hourOffset) * time.Hour)

	// Diurnal curve peaking at 14:00 local, plus noise and the drift term.
	hourOfDay := (now.Hour() + hourOffset) % 24
	if hourOfDay < 0 {
		hourOfDay += 24
	}
	dailyVariation := 15 * (0.5 - math.Abs(float64(hourOfDay)-14)/24)
	temperature := s.baseTemp + dailyVariation + s.rng.NormFloat64()*3 + s.temperatureTrend
	temperature = clamp(temperature, MinTemperatureF, MaxTemperatureF)

	// Humidity is weakly anti-correlated with temperature.
	baseHumidity := clamp(80-(temperature-s.baseTemp)*1.5, 30, 90)
	humidity := clamp(baseHumidity+s.rng.NormFloat64()*10, 20, 95)

	// Precipitation gated by the storm probability, with a heavy sub-range.
	precipitation := 0.0
	if chance := s.rng.Float64(); chance < s.stormProbability {
		precipitation = s.uniform(0.01, 0.5)
		if chance < s.stormProbability*0.2 {
			precipitation = s.uniform(0.5, 2.0)
		}
	}

	// Wind picks up under precipitation.
	baseWind := 5 + s.uniform(0, 10)
	if precipitation > 0.1 {
		baseWind += s.uniform(5, 20)
	}
	windSpeed := math.Max(0, baseWind+s.rng.NormFloat64()*3)

	windDirection := CompassDirections[s.rng.Intn(len(CompassDirections))]

	pressure := clamp(1013.25+s.pressureTrend+s.rng.NormFloat64()*5,
		MinPressureMb, MaxPressureMb)

	// Visibility degrades under precipitation and high humidity.
	visibility := 10.0
	if precipitation > 0.1 {
		visibility = math.Max(0.5, 10-precipitation*8)
	}
	if humidity > 85 {
		visibility = math.Min(visibility, 5.0)
	}
	visibility = clamp(visibility, MinVisibilityMi, MaxVisibilityMi)

	conditions := deriveConditions(temperature, humidity, precipitation, windSpeed)

	uvIndex := 0
	if hourOfDay >= 6 && hourOfDay <= 18 && (conditions == CondClear || conditions == CondHot) {
		uvIndex = (hourOfDay-6)/2 + s.rng.Intn(3)
		if uvIndex < 1 {
			uvIndex = 1
		}
		if uvIndex > MaxUVIndex {
			uvIndex = MaxUVIndex
		}
	}

	s.updateTrends()

	return &Reading{
		Timestamp:           timestamp,
		TemperatureF:        round1(temperature),
		HumidityPercent:     round1(humidity),
		PrecipitationInches: round2(precipitation),
		WindSpeedMph:        round1(windSpeed),
		WindDirection:       windDirection,
		PressureMb:          round1(pressure),
		VisibilityMiles:     round1(visibility),
		Conditions:          conditions,
		UVIndex:             uvIndex,
		Source:              SourceSimulated,
	}
}

// deriveConditions labels the reading by a fixed priority order: heavy
// precipitation > light precipitation > fog > high wind > heat > cold > clear.
func deriveConditions(temperature, humidity, precipitation, windSpeed float64) string {
	switch {
	case precipitation > 0.5 && temperature > 32:
		return CondHeavyRain
	case precipitation > 0.5:
		return CondHeavySnow
	case precipitation > 0.1 && temperature > 32:
		return CondRain
	case precipitation > 0.1:
		return CondSnow
	case humidity > 85:
		return CondFog
	case windSpeed > 25:
		return CondWindy
	case temperature > 90:
		return CondHot
	case temperature < 32:
		return CondCold
	default:
		return CondClear
	}
}

// updateTrends advances the slow-drifting state between draws. Each term is
// a bounded random walk; callers hold the mutex.
func (s *Simulator) updateTrends() {
	if s.rng.Float64() < 0.1 {
		s.temperatureTrend = clamp(s.temperatureTrend+s.uniform(-2, 2), -5, 5)
	}
	if s.rng.Float64() < 0.15 {
		s.pressureTrend = clamp(s.pressureTrend+s.uniform(-4, 4), -10, 10)
	}
	if s.rng.Float64() < 0.2 {
		s.stormProbability = clamp(s.stormProbability+s.uniform(-0.2, 0.2), 0.05, 0.8)
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
