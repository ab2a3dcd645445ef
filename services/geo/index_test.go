// File: services/geo/index_test.go
package geo

import (
	"testing"

	"tripsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDay() models.DayPlan {
	return models.DayPlan{
		DayNumber: 1,
		Activities: []models.Activity{
			{ID: "a1", Title: "Sagrada Familia tour", Category: "Landmark", Icon: "culture",
				Location: &models.GeoPoint{Lat: 41.4036, Lng: 2.1744}},
			{ID: "a2", Title: "Lunch at La Boqueria", Category: "Dining", Icon: "meal",
				Details: map[string]any{"latitude": "41.3817", "longitude": "2.1716"}},
			{ID: "a3", Title: "Hotel checkout", Category: "Hotel", Icon: "lodging",
				Location: &models.GeoPoint{Lat: 0, Lng: 0}},
			{ID: "a4", Title: "Flight home", Category: "Transportation", Icon: "flight"},
		},
	}
}

func TestBuildIndexMarkers(t *testing.T) {
	ix := BuildIndex(sampleDay())

	markers := ix.Markers()
	require.Len(t, markers, 2, "unset and coordinate-less activities never become markers")

	assert.Equal(t, "a1", markers[0].ActivityID)
	assert.Equal(t, "culture", markers[0].Icon)
	assert.InDelta(t, 41.4036, markers[0].Position.Lat, 1e-9)

	// String coordinates under details are coerced.
	assert.Equal(t, "a2", markers[1].ActivityID)
	assert.InDelta(t, 41.3817, markers[1].Position.Lat, 1e-9)
	assert.InDelta(t, 2.1716, markers[1].Position.Lng, 1e-9)
}

func TestBuildIndexEmptyDay(t *testing.T) {
	ix := BuildIndex(models.DayPlan{DayNumber: 1, Activities: []models.Activity{}})
	assert.Empty(t, ix.Markers())

	_, ok := ix.Lookup("anything")
	assert.False(t, ok)
}

func TestLookupFallbackChain(t *testing.T) {
	ix := BuildIndex(models.DayPlan{
		DayNumber: 1,
		Activities: []models.Activity{
			{ID: "5", Title: "Louvre Museum"},
			{ID: "act-7", Title: "Seine walking tour"},
		},
	})

	// Exact match.
	a, ok := ix.Lookup("act-7")
	require.True(t, ok)
	assert.Equal(t, "act-7", a.ID)

	// Numeric coercion: "5.0" and " 5" meet "5".
	a, ok = ix.Lookup("5.0")
	require.True(t, ok)
	assert.Equal(t, "5", a.ID)
	a, ok = ix.Lookup(" 5")
	require.True(t, ok)
	assert.Equal(t, "5", a.ID)

	// Title substring as the last resort.
	a, ok = ix.Lookup("Seine")
	require.True(t, ok)
	assert.Equal(t, "act-7", a.ID)

	_, ok = ix.Lookup("nope")
	assert.False(t, ok)
	_, ok = ix.Lookup("")
	assert.False(t, ok)
}
