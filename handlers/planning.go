// File: handlers/planning.go
package handlers

import (
	"encoding/json"
	"net/http"

	"tripsync/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cannedFlights are the offers returned by /flight-search.
var cannedFlights = []models.Flight{
	{ID: "FL-100", Airline: "Vueling", FlightNumber: "VY8421", DepartureTime: "08:15", ArrivalTime: "10:40", Duration: "2h25m", Stops: 0, Price: 96, Currency: "EUR"},
	{ID: "FL-101", Airline: "Iberia", FlightNumber: "IB3402", DepartureTime: "11:05", ArrivalTime: "13:20", Duration: "2h15m", Stops: 0, Price: 142, Currency: "EUR"},
	{ID: "FL-102", Airline: "Lufthansa", FlightNumber: "LH1139", DepartureTime: "06:50", ArrivalTime: "12:05", Duration: "5h15m", Stops: 1, Price: 88, Currency: "EUR"},
}

// InitiateTravelPlanningHandler handles POST /initiate-travel-planning.
func (h *PlannerHandler) InitiateTravelPlanningHandler(c *gin.Context) {
	var req models.PlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid planning request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	session := &planningSession{id: uuid.NewString(), req: req}
	h.mu.Lock()
	h.plannings[session.id] = session
	h.mu.Unlock()

	c.JSON(http.StatusOK, models.PlanningResponse{
		Success:    true,
		PlanningID: session.id,
		Message:    "Planning started. Search flights when you're ready.",
	})
}

// FlightSearchHandler handles POST /flight-search.
func (h *PlannerHandler) FlightSearchHandler(c *gin.Context) {
	var req models.PlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	data, _ := json.Marshal(gin.H{"flights": cannedFlights})
	c.JSON(http.StatusOK, models.PlanningResponse{
		Success:    true,
		PlanningID: req.PlanningID,
		Message:    "Found flight offers.",
		Data:       data,
	})
}

// FlightSelectHandler handles POST /flight-select.
func (h *PlannerHandler) FlightSelectHandler(c *gin.Context) {
	var req models.PlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	h.mu.Lock()
	session, ok := h.plannings[req.PlanningID]
	if ok {
		session.selectedFlight = req.FlightID
	}
	h.mu.Unlock()

	if !ok {
		// Unknown planning session is an application-level failure.
		c.JSON(http.StatusOK, models.PlanningResponse{
			Success: false,
			Message: "No active planning session. Please start planning first.",
		})
		return
	}

	c.JSON(http.StatusOK, models.PlanningResponse{
		Success:    true,
		PlanningID: session.id,
		Message:    "Flight selected. Generate the itinerary when you're ready.",
	})
}

// GenerateItineraryHandler handles POST /generate-itinerary. The itinerary
// payload is also pushed to the conversation's websocket, when one is open.
func (h *PlannerHandler) GenerateItineraryHandler(c *gin.Context) {
	var req models.PlanningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	h.mu.Lock()
	session := h.plannings[req.PlanningID]
	h.mu.Unlock()

	destination := req.Destination
	if destination == "" && session != nil {
		destination = session.req.Destination
	}
	if destination == "" {
		destination = knownDestinations[0]
	}

	var seq int
	if session != nil {
		h.mu.Lock()
		seq = session.shapeSeq
		session.shapeSeq++
		h.mu.Unlock()
	}

	base := buildItinerary(destination)
	payload, err := wrapItinerary(base, seq)
	if err != nil {
		h.logger.Error("failed to encode itinerary payload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build itinerary"})
		return
	}

	if h.Hub != nil && req.ConversationID != "" {
		h.Hub.Push(req.ConversationID, gin.H{"type": "itinerary_update", "itinerary": base})
		h.rememberItinerary(req.ConversationID, payload)
	}

	c.JSON(http.StatusOK, models.PlanningResponse{
		Success:    true,
		PlanningID: req.PlanningID,
		Message:    "Itinerary generated.",
		Data:       payload,
	})
}
