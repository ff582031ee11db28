// Package marine maps raw Open-Meteo marine values onto the named attribute
// set republished to the host automation platform.
package marine

import (
	"strings"

	"github.com/hazz-dev/marinemon/internal/config"
	"github.com/hazz-dev/marinemon/internal/health"
	"github.com/hazz-dev/marinemon/internal/openmeteo"
)

// Measurement units for republished attributes.
const (
	UnitMeters  = "m"
	UnitDegrees = "°"
	UnitSeconds = "s"
	UnitPercent = "%"
)

const entityPrefix = "marine_weather"

// EntityID builds the stable identifier for a location's entity, e.g.
// "marine_weather_kings_beach_current".
func EntityID(locationName, suffix string) string {
	name := strings.ToLower(strings.ReplaceAll(locationName, " ", "_"))
	return entityPrefix + "_" + name + "_" + suffix
}

// CurrentAttributes builds the attribute map for one location's current
// conditions. Direction fields carry both raw degrees and compass names;
// every measured field carries its unit alongside. The upstream health
// metrics ride along as diagnostic attributes.
func CurrentAttributes(loc config.Location, data *openmeteo.CurrentMarine, snap health.Snapshot) map[string]any {
	attrs := map[string]any{
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,

		"swell_wave_height":           data.SwellWaveHeight,
		"swell_wave_height_unit":      UnitMeters,
		"swell_wave_direction":        data.SwellWaveDirection,
		"swell_wave_direction_unit":   UnitDegrees,
		"swell_wave_direction_name":   DegreesToCompass(data.SwellWaveDirection),
		"swell_wave_period":           data.SwellWavePeriod,
		"swell_wave_period_unit":      UnitSeconds,
		"swell_wave_peak_period":      data.SwellWavePeakPeriod,
		"swell_wave_peak_period_unit": UnitSeconds,

		"wave_height":         data.WaveHeight,
		"wave_height_unit":    UnitMeters,
		"wave_direction":      data.WaveDirection,
		"wave_direction_unit": UnitDegrees,
		"wave_direction_name": DegreesToCompass(data.WaveDirection),
		"wave_period":         data.WavePeriod,
		"wave_period_unit":    UnitSeconds,

		"wind_wave_height":           data.WindWaveHeight,
		"wind_wave_height_unit":      UnitMeters,
		"wind_wave_direction":        data.WindWaveDirection,
		"wind_wave_direction_unit":   UnitDegrees,
		"wind_wave_direction_name":   DegreesToCompass(data.WindWaveDirection),
		"wind_wave_period":           data.WindWavePeriod,
		"wind_wave_period_unit":      UnitSeconds,
		"wind_wave_peak_period":      data.WindWavePeakPeriod,
		"wind_wave_peak_period_unit": UnitSeconds,

		"models": "best_match",
	}

	attrs["api_health_status"] = string(snap.Status)
	attrs["api_success_rate"] = snap.SuccessRate
	attrs["api_success_rate_unit"] = UnitPercent
	attrs["api_avg_response_time"] = snap.AvgResponseTime.Seconds()
	attrs["api_avg_response_time_unit"] = UnitSeconds
	attrs["api_total_checks"] = snap.TotalChecks
	attrs["api_consecutive_failures"] = snap.ConsecutiveFailures

	return attrs
}
