// File: services/geo/index.go
package geo

import (
	"strconv"
	"strings"

	"tripsync/models"

	"github.com/samber/lo"
)

// Index derives map markers from one day's activities and supports stable
// cross-view lookup by activity id. Activities without a parseable coordinate,
// or with a 0 coordinate component (unset by convention), never become
// markers.
type Index struct {
	activities []models.Activity
	markers    []models.Marker
}

// BuildIndex indexes the activities of a day plan.
func BuildIndex(day models.DayPlan) *Index {
	ix := &Index{activities: day.Activities}

	located := lo.Filter(day.Activities, func(a models.Activity, _ int) bool {
		return resolveLocation(a) != nil
	})
	ix.markers = lo.Map(located, func(a models.Activity, _ int) models.Marker {
		return models.Marker{
			ActivityID: a.ID,
			Title:      a.Title,
			Category:   a.Category,
			Icon:       a.Icon,
			Position:   *resolveLocation(a),
		}
	})

	return ix
}

// Markers returns the marker set in activity order.
func (ix *Index) Markers() []models.Marker {
	return ix.markers
}

// Lookup finds an activity by id: exact match first, then a string-coerced
// match, then, as a last resort, a case-sensitive substring match against the
// title. The degradation exists because ids are not always propagated
// consistently by upstream producers.
func (ix *Index) Lookup(id string) (models.Activity, bool) {
	for _, a := range ix.activities {
		if a.ID == id {
			return a, true
		}
	}

	coerced := coerceID(id)
	if coerced != "" {
		for _, a := range ix.activities {
			if coerceID(a.ID) == coerced {
				return a, true
			}
		}
	}

	if id != "" {
		for _, a := range ix.activities {
			if a.Title != "" && strings.Contains(a.Title, id) {
				return a, true
			}
		}
	}

	return models.Activity{}, false
}

// resolveLocation returns the renderable coordinate for an activity, or nil
// when it has none or it is unset.
func resolveLocation(a models.Activity) *models.GeoPoint {
	loc := a.Location
	if loc == nil {
		loc = CoerceDetailsLocation(a.Details)
	}
	if loc == nil || loc.IsUnset() {
		return nil
	}
	return loc
}

// coerceID normalizes an id for loose comparison: whitespace is trimmed and
// numeric forms compare by value, so "5", " 5" and "5.0" all meet.
func coerceID(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return trimmed
}
