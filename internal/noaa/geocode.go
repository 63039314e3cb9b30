package noaa

import "strings"

// cityCoordinates is a lookup table for the major US cities the agent
// supports out of the box. Production deployments front this with a real
// geocoding service.
var cityCoordinates = map[string][2]float64{
	"boise,id":                  {43.6150, -116.2023},
	"boise,idaho":               {43.6150, -116.2023},
	"seattle,wa":                {47.6062, -122.3321},
	"seattle,washington":        {47.6062, -122.3321},
	"portland,or":               {45.5152, -122.6784},
	"portland,oregon":           {45.5152, -122.6784},
	"denver,co":                 {39.7392, -104.9903},
	"denver,colorado":           {39.7392, -104.9903},
	"phoenix,az":                {33.4484, -112.0740},
	"phoenix,arizona":           {33.4484, -112.0740},
	"los angeles,ca":            {34.0522, -118.2437},
	"los angeles,california":    {34.0522, -118.2437},
	"san francisco,ca":          {37.7749, -122.4194},
	"san francisco,california":  {37.7749, -122.4194},
	"chicago,il":                {41.8781, -87.6298},
	"chicago,illinois":          {41.8781, -87.6298},
	"new york,ny":               {40.7128, -74.0060},
	"new york,new york":         {40.7128, -74.0060},
	"washington,dc":             {38.8951, -77.0364},
	"miami,fl":                  {25.7617, -80.1918},
	"miami,florida":             {25.7617, -80.1918},
}

// Geocode resolves a "City, ST" place name to coordinates. The boolean is
// false when the place is unknown; callers fall back to simulation.
func Geocode(place string) (lat, lon float64, ok bool) {
	parts := strings.SplitN(place, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	key := strings.ToLower(strings.TrimSpace(parts[0])) + "," +
		strings.ToLower(strings.TrimSpace(parts[1]))
	coords, ok := cityCoordinates[key]
	if !ok {
		return 0, 0, false
	}
	return coords[0], coords[1], true
}
