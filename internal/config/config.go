package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Location is a single monitored surf location.
type Location struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// APIConfig holds upstream Open-Meteo marine API settings.
type APIConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Timezone       string   `yaml:"timezone"`
	RequestTimeout Duration `yaml:"request_timeout"`
	PollInterval   Duration `yaml:"poll_interval"`
}

// HealthConfig holds API health monitor settings.
type HealthConfig struct {
	CheckInterval       Duration `yaml:"check_interval"`
	FailureThreshold    int      `yaml:"failure_threshold"`
	RecoveryThreshold   int      `yaml:"recovery_threshold"`
	DegradedLatency     Duration `yaml:"degraded_latency"`
	DegradedSuccessRate float64  `yaml:"degraded_success_rate"`
	WindowSize          int      `yaml:"window_size"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Locations []Location    `yaml:"locations"`
	API       APIConfig     `yaml:"api"`
	Health    HealthConfig  `yaml:"health"`
	Alerts    AlertsConfig  `yaml:"alerts"`
	Server    ServerConfig  `yaml:"server"`
	Storage   StorageConfig `yaml:"storage"`
}

const (
	// DefaultBaseURL is the Open-Meteo marine weather endpoint.
	DefaultBaseURL = "https://marine-api.open-meteo.com/v1/marine"

	defaultTimezone = "Australia/Sydney"
)

// Load reads, parses, and validates the config file at path. Invalid
// thresholds or intervals fail here, before any component is constructed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Unmarshal into a raw intermediate so duration parse errors can name
	// the offending field instead of surfacing as YAML type errors.
	type rawAPI struct {
		BaseURL        string `yaml:"base_url"`
		Timezone       string `yaml:"timezone"`
		RequestTimeout string `yaml:"request_timeout"`
		PollInterval   string `yaml:"poll_interval"`
	}
	type rawHealth struct {
		CheckInterval       string   `yaml:"check_interval"`
		FailureThreshold    *int     `yaml:"failure_threshold"`
		RecoveryThreshold   *int     `yaml:"recovery_threshold"`
		DegradedLatency     string   `yaml:"degraded_latency"`
		DegradedSuccessRate *float64 `yaml:"degraded_success_rate"`
		WindowSize          *int     `yaml:"window_size"`
	}
	type rawConfig struct {
		Locations []Location    `yaml:"locations"`
		API       rawAPI        `yaml:"api"`
		Health    rawHealth     `yaml:"health"`
		Alerts    AlertsConfig  `yaml:"alerts"`
		Server    ServerConfig  `yaml:"server"`
		Storage   StorageConfig `yaml:"storage"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(raw.Locations) == 0 {
		return nil, fmt.Errorf("at least one location must be configured")
	}

	cfg := &Config{
		Alerts:  raw.Alerts,
		Server:  raw.Server,
		Storage: raw.Storage,
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "marinemon.db"
	}

	names := make(map[string]bool, len(raw.Locations))
	for i, loc := range raw.Locations {
		if loc.Name == "" {
			return nil, fmt.Errorf("location[%d]: name is required", i)
		}
		if names[loc.Name] {
			return nil, fmt.Errorf("duplicate location name %q", loc.Name)
		}
		names[loc.Name] = true

		if loc.Latitude < -90 || loc.Latitude > 90 {
			return nil, fmt.Errorf("location %q: latitude %v out of range [-90, 90]", loc.Name, loc.Latitude)
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			return nil, fmt.Errorf("location %q: longitude %v out of range [-180, 180]", loc.Name, loc.Longitude)
		}
		cfg.Locations = append(cfg.Locations, loc)
	}

	cfg.API.BaseURL = raw.API.BaseURL
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	cfg.API.Timezone = raw.API.Timezone
	if cfg.API.Timezone == "" {
		cfg.API.Timezone = defaultTimezone
	}
	cfg.API.RequestTimeout, err = parseDuration(raw.API.RequestTimeout, "api.request_timeout", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.API.PollInterval, err = parseDuration(raw.API.PollInterval, "api.poll_interval", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.Health.CheckInterval, err = parseDuration(raw.Health.CheckInterval, "health.check_interval", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Health.DegradedLatency, err = parseDuration(raw.Health.DegradedLatency, "health.degraded_latency", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Health.FailureThreshold = intOr(raw.Health.FailureThreshold, 3)
	cfg.Health.RecoveryThreshold = intOr(raw.Health.RecoveryThreshold, 2)
	cfg.Health.WindowSize = intOr(raw.Health.WindowSize, 50)
	cfg.Health.DegradedSuccessRate = 90
	if raw.Health.DegradedSuccessRate != nil {
		cfg.Health.DegradedSuccessRate = *raw.Health.DegradedSuccessRate
	}

	if cfg.Health.FailureThreshold <= 0 {
		return nil, fmt.Errorf("health.failure_threshold must be positive, got %d", cfg.Health.FailureThreshold)
	}
	if cfg.Health.RecoveryThreshold <= 0 {
		return nil, fmt.Errorf("health.recovery_threshold must be positive, got %d", cfg.Health.RecoveryThreshold)
	}
	if cfg.Health.WindowSize <= 0 {
		return nil, fmt.Errorf("health.window_size must be positive, got %d", cfg.Health.WindowSize)
	}
	if cfg.Health.DegradedSuccessRate < 0 || cfg.Health.DegradedSuccessRate > 100 {
		return nil, fmt.Errorf("health.degraded_success_rate must be within [0, 100], got %v", cfg.Health.DegradedSuccessRate)
	}

	return cfg, nil
}

// parseDuration parses an optional duration string, applying def when empty
// and rejecting non-positive values.
func parseDuration(s, field string, def time.Duration) (Duration, error) {
	if s == "" {
		return Duration{def}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Duration{}, fmt.Errorf("%s: invalid duration %q: %w", field, s, err)
	}
	if d <= 0 {
		return Duration{}, fmt.Errorf("%s must be positive, got %s", field, s)
	}
	return Duration{d}, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
