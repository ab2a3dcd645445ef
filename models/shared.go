package models

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsUnset reports whether either component is exactly 0. By upstream
// convention a 0 coordinate means "not set", never the equator or the prime
// meridian, so such points must not be rendered at (0,0).
func (p GeoPoint) IsUnset() bool {
	return p.Lat == 0 || p.Lng == 0
}

// Marker is a map pin derived from a coordinate-bearing activity.
type Marker struct {
	ActivityID string   `json:"activity_id"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Icon       string   `json:"icon"`
	Position   GeoPoint `json:"position"`
}
