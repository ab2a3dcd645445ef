// File: services/geo/selection.go
package geo

import (
	"sync"

	"tripsync/models"
)

// SelectionRouter carries activity selections from the originating view (a
// chat or itinerary row) to the active map instance by explicit message
// passing. There is exactly one active map handler at a time; registering a
// new one replaces the old.
type SelectionRouter struct {
	mu      sync.Mutex
	handler func(models.Marker)
	gen     int
}

// NewSelectionRouter returns an empty router.
func NewSelectionRouter() *SelectionRouter {
	return &SelectionRouter{}
}

// SetActiveMap registers the handler of the currently mounted map view and
// returns a release func for teardown. Releasing a registration that has
// already been replaced is a no-op.
func (r *SelectionRouter) SetActiveMap(handler func(models.Marker)) func() {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.handler = handler
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen == gen {
			r.handler = nil
		}
	}
}

// Select resolves the activity in the index and routes its marker to the
// active map. It reports whether a marker was routed.
func (r *SelectionRouter) Select(ix *Index, activityID string) bool {
	activity, ok := ix.Lookup(activityID)
	if !ok {
		return false
	}
	loc := resolveLocation(activity)
	if loc == nil {
		return false
	}

	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()
	if handler == nil {
		return false
	}

	handler(models.Marker{
		ActivityID: activity.ID,
		Title:      activity.Title,
		Category:   activity.Category,
		Icon:       activity.Icon,
		Position:   *loc,
	})
	return true
}
