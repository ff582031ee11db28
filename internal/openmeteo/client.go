package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// currentVariables is the variable set requested for current conditions.
const currentVariables = "wave_height,wave_direction,wave_period," +
	"wind_wave_height,wind_wave_direction,wind_wave_period,wind_wave_peak_period," +
	"swell_wave_height,swell_wave_direction,swell_wave_period,swell_wave_peak_period"

// CurrentMarine is the decoded "current" block of a marine API response.
// Values the API reports as null decode to nil.
type CurrentMarine struct {
	Time                string   `json:"time"`
	WaveHeight          *float64 `json:"wave_height"`
	WaveDirection       *float64 `json:"wave_direction"`
	WavePeriod          *float64 `json:"wave_period"`
	WindWaveHeight      *float64 `json:"wind_wave_height"`
	WindWaveDirection   *float64 `json:"wind_wave_direction"`
	WindWavePeriod      *float64 `json:"wind_wave_period"`
	WindWavePeakPeriod  *float64 `json:"wind_wave_peak_period"`
	SwellWaveHeight     *float64 `json:"swell_wave_height"`
	SwellWaveDirection  *float64 `json:"swell_wave_direction"`
	SwellWavePeriod     *float64 `json:"swell_wave_period"`
	SwellWavePeakPeriod *float64 `json:"swell_wave_peak_period"`
}

type marineResponse struct {
	Timezone string         `json:"timezone"`
	Current  *CurrentMarine `json:"current"`
}

// Client talks to the Open-Meteo marine weather API.
type Client struct {
	baseURL  string
	timezone string
	client   *http.Client
}

// NewClient creates a Client for the given endpoint. The timeout bounds
// every request, probes included.
func NewClient(baseURL, timezone string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		timezone: timezone,
		client:   &http.Client{Timeout: timeout},
	}
}

// FetchCurrent fetches current marine conditions for one coordinate pair.
// A missing "current" block is treated as a malformed payload.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (*CurrentMarine, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("current", currentVariables)
	q.Set("timezone", c.timezone)
	q.Set("models", "best_match")

	var resp marineResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return nil, err
	}
	if resp.Current == nil {
		return nil, fmt.Errorf("no current data in response for %s,%s", formatCoord(lat), formatCoord(lon))
	}
	return resp.Current, nil
}

// Probe performs a lightweight single-variable request against the same
// endpoint to verify the API is reachable and serving parseable data.
func (c *Client) Probe(ctx context.Context) error {
	q := url.Values{}
	q.Set("latitude", "0")
	q.Set("longitude", "0")
	q.Set("current", "wave_height")

	var resp marineResponse
	return c.get(ctx, q, &resp)
}

func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, c.baseURL)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
