// File: services/geo/coords.go
package geo

import (
	"strconv"
	"strings"

	"tripsync/models"

	"github.com/tidwall/gjson"
)

// coordPaths are the historical coordinate shapes produced by various backend
// revisions, probed in order. First hit wins.
var coordPaths = [][2]string{
	{"details.latitude", "details.longitude"},
	{"location.lat", "location.lng"},
	{"details.location.lat", "details.location.lng"},
}

// CoerceLocation extracts a numeric coordinate pair from a raw activity
// object, accepting numbers or numeric strings under any recognized path.
// It returns nil when no path yields a parseable pair.
func CoerceLocation(activity gjson.Result) *models.GeoPoint {
	for _, p := range coordPaths {
		lat, okLat := numeric(activity.Get(p[0]))
		lng, okLng := numeric(activity.Get(p[1]))
		if okLat && okLng {
			return &models.GeoPoint{Lat: lat, Lng: lng}
		}
	}
	return nil
}

// CoerceDetailsLocation is the map-based counterpart of CoerceLocation for
// activities that have already been normalized and carry their raw details.
func CoerceDetailsLocation(details map[string]any) *models.GeoPoint {
	if details == nil {
		return nil
	}

	if lat, okLat := numericValue(details["latitude"]); okLat {
		if lng, okLng := numericValue(details["longitude"]); okLng {
			return &models.GeoPoint{Lat: lat, Lng: lng}
		}
	}

	if nested, ok := details["location"].(map[string]any); ok {
		if lat, okLat := numericValue(nested["lat"]); okLat {
			if lng, okLng := numericValue(nested["lng"]); okLng {
				return &models.GeoPoint{Lat: lat, Lng: lng}
			}
		}
	}

	return nil
}

func numeric(res gjson.Result) (float64, bool) {
	switch res.Type {
	case gjson.Number:
		return res.Float(), true
	case gjson.String:
		return numericString(res.String())
	default:
		return 0, false
	}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		return numericString(n)
	default:
		return 0, false
	}
}

func numericString(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
