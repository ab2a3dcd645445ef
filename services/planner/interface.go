// File: services/planner/interface.go
package planner

import (
	"context"

	"tripsync/models"
)

// PlannerService is the application-facing surface of the sync core: chat and
// planning calls go out through the request coordinator, itinerary payloads
// come back through the normalizer, and realtime pushes arrive over the
// channel. Views consume only the canonical itinerary it publishes.
type PlannerService interface {
	SendMessage(ctx context.Context, text string) (*models.AssistantReply, error)
	SaveAudio(ctx context.Context, filename string, audio []byte) (*models.TranscriptResponse, error)

	InitiatePlanning(ctx context.Context, req models.PlanningRequest) (*models.PlanningResponse, error)
	SearchFlights(ctx context.Context, req models.PlanningRequest) ([]models.Flight, error)
	SelectFlight(ctx context.Context, flightID string) (*models.PlanningResponse, error)
	GenerateItinerary(ctx context.Context) (*models.PlanningResponse, error)

	MapKey(ctx context.Context) (string, error)

	ConnectRealtime() error
	OnItinerary(fn func(*models.CanonicalItinerary)) func()
	Current() *models.CanonicalItinerary

	Close()
}
