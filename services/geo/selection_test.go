// File: services/geo/selection_test.go
package geo

import (
	"testing"

	"tripsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRoutesToActiveMap(t *testing.T) {
	ix := BuildIndex(sampleDay())
	r := NewSelectionRouter()

	var got []models.Marker
	release := r.SetActiveMap(func(m models.Marker) { got = append(got, m) })
	defer release()

	require.True(t, r.Select(ix, "a1"))
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ActivityID)
	assert.InDelta(t, 41.4036, got[0].Position.Lat, 1e-9)

	// Unknown activity, or one without a renderable coordinate, routes nothing.
	assert.False(t, r.Select(ix, "missing"))
	assert.False(t, r.Select(ix, "a3"))
	assert.False(t, r.Select(ix, "a4"))
	assert.Len(t, got, 1)
}

func TestSelectWithoutActiveMap(t *testing.T) {
	ix := BuildIndex(sampleDay())
	r := NewSelectionRouter()
	assert.False(t, r.Select(ix, "a1"))
}

func TestReleaseAfterReplacementIsNoop(t *testing.T) {
	ix := BuildIndex(sampleDay())
	r := NewSelectionRouter()

	var first, second int
	releaseFirst := r.SetActiveMap(func(models.Marker) { first++ })
	r.SetActiveMap(func(models.Marker) { second++ })

	// Releasing the superseded registration must not tear down the active one.
	releaseFirst()

	require.True(t, r.Select(ix, "a1"))
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}
