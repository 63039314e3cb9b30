package noaa

import (
	"context"

	"skywatch/internal/weather"
)

// Source adapts a Client and a resolved grid reference to the shared
// data-source contract. The grid reference is resolved once at
// initialization and held here; readings carry copied derived fields only.
type Source struct {
	client   *Client
	location *Location
}

// NewSource creates a live data source bound to a resolved location.
func NewSource(client *Client, location *Location) *Source {
	return &Source{client: client, location: location}
}

// Current implements weather.Source.
func (s *Source) Current(ctx context.Context) (*weather.Reading, error) {
	return s.client.CurrentReading(ctx, s.location)
}

// Advisories fetches the advisories active at the source's location.
func (s *Source) Advisories(ctx context.Context) ([]Advisory, error) {
	return s.client.ActiveAdvisories(ctx, s.location.Latitude, s.location.Longitude)
}

// Location returns the resolved grid reference.
func (s *Source) Location() *Location {
	return s.location
}
