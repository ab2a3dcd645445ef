package models

import "encoding/json"

// PlanningRequest drives the step-wise planning endpoints
// (/initiate-travel-planning, /flight-search, /flight-select,
// /generate-itinerary). The planning id is assigned on initiation and echoed
// back on every subsequent step.
type PlanningRequest struct {
	PlanningID     string `json:"planning_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`

	Origin      string  `json:"origin,omitempty"`
	Destination string  `json:"destination,omitempty"`
	StartDate   string  `json:"start_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	Travelers   int     `json:"travelers,omitempty"`
	Budget      float64 `json:"budget,omitempty"`
	FlightID    string  `json:"flight_id,omitempty"`
}

// PlanningResponse is the common reply envelope for planning steps.
type PlanningResponse struct {
	Success    bool            `json:"success"`
	PlanningID string          `json:"planning_id,omitempty"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Flight is a single flight offer from /flight-search.
type Flight struct {
	ID            string  `json:"id"`
	Airline       string  `json:"airline"`
	FlightNumber  string  `json:"flight_number,omitempty"`
	DepartureTime string  `json:"departure_time"`
	ArrivalTime   string  `json:"arrival_time"`
	Duration      string  `json:"duration,omitempty"`
	Stops         int     `json:"stops"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency,omitempty"`
}
