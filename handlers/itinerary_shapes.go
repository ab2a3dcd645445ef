// File: handlers/itinerary_shapes.go
package handlers

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// knownDestinations the mock can plan for.
var knownDestinations = []string{"Barcelona", "Paris", "Tokyo", "Lisbon"}

// destinationDays holds canned three-day plans. Coordinate shapes vary on
// purpose: numeric strings under details, location.lat/lng objects, nested
// details.location, and the occasional unset (0,0) pair.
var destinationDays = map[string][]map[string]any{
	"Barcelona": {
		{
			"activities": []map[string]any{
				{
					"time": "09:00", "title": "Sagrada Familia tour", "category": "Landmark",
					"details": map[string]any{"latitude": "41.4036", "longitude": "2.1744"},
					"review_insights": map[string]any{
						"sentiment": "positive",
						"strengths": []string{"architecture", "guided tour"},
						"summary":   "Visitors consistently call it unmissable.",
					},
				},
				{
					"time": "13:00", "title": "Lunch at La Boqueria", "category": "Dining",
					"location": map[string]any{"lat": 41.3817, "lng": 2.1716},
				},
			},
		},
		{
			"activities": []map[string]any{
				{
					"time": "10:00", "title": "Park Güell walk", "category": "Park",
					"details": map[string]any{"location": map[string]any{"lat": 41.4145, "lng": 2.1527}},
				},
				{
					"time": "15:00", "title": "Picasso Museum", "category": "Museum",
					"details": map[string]any{"latitude": 41.3852, "longitude": 2.1809},
				},
			},
		},
		{
			"activities": []map[string]any{
				{
					"time": "09:30", "title": "Hotel checkout", "category": "Hotel",
					"details": map[string]any{"latitude": 0, "longitude": 0},
				},
				{
					"time": "12:00", "title": "Flight home", "category": "Transportation",
				},
			},
		},
	},
	"Paris": {
		{
			"activities": []map[string]any{
				{
					"time": "09:00", "title": "Louvre Museum", "category": "Museum",
					"details": map[string]any{"latitude": "48.8606", "longitude": "2.3376"},
				},
				{
					"time": "13:30", "title": "Café de Flore", "category": "Dining",
					"location": map[string]any{"lat": 48.8540, "lng": 2.3325},
				},
			},
		},
		{
			"activities": []map[string]any{
				{
					"time": "10:00", "title": "Luxembourg Gardens", "category": "Park",
					"details": map[string]any{"location": map[string]any{"lat": 48.8462, "lng": 2.3372}},
				},
				{
					"time": "16:00", "title": "Seine walking tour", "category": "Tour",
					"location": map[string]any{"lat": 48.8584, "lng": 2.2945},
				},
			},
		},
		{
			"activities": []map[string]any{
				{"time": "11:00", "title": "Hotel checkout", "category": "Hotel"},
				{"time": "14:00", "title": "Train to airport", "category": "Transportation"},
			},
		},
	},
}

// buildItinerary produces the base (unwrapped) itinerary document for a
// destination, with day keys in assorted textual forms.
func buildItinerary(destination string) map[string]any {
	days, ok := destinationDays[destination]
	if !ok {
		days = destinationDays["Barcelona"]
	}

	// Day keys come in every form real backend revisions have used.
	keyForms := []string{"day_%d", "Day %d", "%d"}
	daily := map[string]any{}
	for i, day := range days {
		key := fmt.Sprintf(keyForms[i%len(keyForms)], i+1)
		daily[key] = day
	}

	return map[string]any{
		"trip_summary": map[string]any{
			"destination":   destination,
			"duration_days": len(days),
			"total_budget":  1800,
		},
		"daily_itinerary": daily,
	}
}

// wrapItinerary nests the base document in a rotating envelope shape, exactly
// like successive backend revisions did.
func wrapItinerary(base map[string]any, seq int) (json.RawMessage, error) {
	var wrapped any
	switch seq % 4 {
	case 0:
		wrapped = base
	case 1:
		wrapped = map[string]any{"data": map[string]any{"itinerary": base}}
	case 2:
		encoded, err := json.Marshal(base)
		if err != nil {
			return nil, err
		}
		wrapped = map[string]any{"response": string(encoded)}
	default:
		// daily_itinerary as a positional array instead of a keyed map.
		days, _ := base["daily_itinerary"].(map[string]any)
		arr := make([]any, 0, len(days))
		for i := 1; i <= len(days); i++ {
			for _, form := range []string{"day_%d", "Day %d", "%d"} {
				if d, ok := days[fmt.Sprintf(form, i)]; ok {
					arr = append(arr, d)
					break
				}
			}
		}
		wrapped = map[string]any{
			"trip_summary":    base["trip_summary"],
			"daily_itinerary": arr,
		}
	}
	return json.Marshal(wrapped)
}

// itineraryPayload builds the next payload for a conversation and remembers
// it for request_state replay. Returned are the wire payload and the base
// document.
func (h *PlannerHandler) itineraryPayload(conv *conversation) (json.RawMessage, map[string]any) {
	base := buildItinerary(h.destinationOf(conv))

	h.mu.Lock()
	seq := conv.shapeSeq
	conv.shapeSeq++
	h.mu.Unlock()

	payload, err := wrapItinerary(base, seq)
	if err != nil {
		h.logger.Error("failed to encode itinerary payload", zap.Error(err))
		return nil, base
	}

	h.mu.Lock()
	conv.lastItinerary = payload
	h.mu.Unlock()
	return payload, base
}
