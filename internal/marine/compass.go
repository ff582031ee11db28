package marine

import "math"

var compassDirections = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// DegreesToCompass converts a direction in degrees to its 16-point compass
// rose name, rounding to the nearest 22.5° sector with wraparound
// (348.75° and above map back to N). A nil direction yields "Unknown".
func DegreesToCompass(degrees *float64) string {
	if degrees == nil {
		return "Unknown"
	}
	idx := int(math.Round(*degrees/22.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return compassDirections[idx]
}
