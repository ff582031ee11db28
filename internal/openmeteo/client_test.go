package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazz-dev/marinemon/internal/openmeteo"
)

const sampleResponse = `{
	"timezone": "Australia/Sydney",
	"current": {
		"time": "2025-06-01T06:00",
		"wave_height": 1.24,
		"wave_direction": 112.0,
		"wave_period": 8.4,
		"wind_wave_height": 0.3,
		"wind_wave_direction": 90.0,
		"wind_wave_period": 3.1,
		"wind_wave_peak_period": 4.0,
		"swell_wave_height": 1.1,
		"swell_wave_direction": 135.0,
		"swell_wave_period": 9.2,
		"swell_wave_peak_period": 11.5
	}
}`

func TestFetchCurrent(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := openmeteo.NewClient(srv.URL, "Australia/Sydney", 5*time.Second)
	data, err := c.FetchCurrent(context.Background(), -26.8017, 153.1426)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data.SwellWaveHeight == nil || *data.SwellWaveHeight != 1.1 {
		t.Errorf("unexpected swell height: %v", data.SwellWaveHeight)
	}
	if data.SwellWaveDirection == nil || *data.SwellWaveDirection != 135.0 {
		t.Errorf("unexpected swell direction: %v", data.SwellWaveDirection)
	}
	if data.WaveHeight == nil || *data.WaveHeight != 1.24 {
		t.Errorf("unexpected wave height: %v", data.WaveHeight)
	}

	for _, want := range []string{
		"latitude=-26.8017",
		"longitude=153.1426",
		"swell_wave_peak_period",
		"models=best_match",
	} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query missing %q: %s", want, gotQuery)
		}
	}
	if !strings.Contains(gotQuery, "timezone=Australia%2FSydney") {
		t.Errorf("query missing escaped timezone: %s", gotQuery)
	}
}

func TestFetchCurrent_NullValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current": {"time": "2025-06-01T06:00", "wave_height": null}}`))
	}))
	defer srv.Close()

	c := openmeteo.NewClient(srv.URL, "UTC", 5*time.Second)
	data, err := c.FetchCurrent(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.WaveHeight != nil {
		t.Errorf("null value should decode to nil, got %v", *data.WaveHeight)
	}
	if data.SwellWaveHeight != nil {
		t.Errorf("absent value should decode to nil, got %v", *data.SwellWaveHeight)
	}
}

func TestFetchCurrent_MissingCurrentBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timezone": "UTC"}`))
	}))
	defer srv.Close()

	c := openmeteo.NewClient(srv.URL, "UTC", 5*time.Second)
	if _, err := c.FetchCurrent(context.Background(), 0, 0); err == nil {
		t.Error("expected error for response without current block")
	}
}

func TestFetchCurrent_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := openmeteo.NewClient(srv.URL, "UTC", 5*time.Second)
	_, err := c.FetchCurrent(context.Background(), 0, 0)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestFetchCurrent_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current": `))
	}))
	defer srv.Close()

	c := openmeteo.NewClient(srv.URL, "UTC", 5*time.Second)
	if _, err := c.FetchCurrent(context.Background(), 0, 0); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current": {"time": "2025-06-01T06:00", "wave_height": 1.0}}`))
	}))
	defer srv.Close()

	c := openmeteo.NewClient(srv.URL, "UTC", 5*time.Second)
	if err := c.Probe(context.Background()); err != nil {
		t.Errorf("unexpected probe error: %v", err)
	}
}

func TestProbe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := openmeteo.NewClient(srv.URL, "UTC", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Probe(ctx); err == nil {
		t.Error("expected timeout error")
	}
}

func TestProbe_ConnectionRefused(t *testing.T) {
	// Point at a closed port.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := openmeteo.NewClient(url, "UTC", time.Second)
	if err := c.Probe(context.Background()); err == nil {
		t.Error("expected connection error")
	}
}
