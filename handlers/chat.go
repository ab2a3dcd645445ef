// File: handlers/chat.go
package handlers

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"tripsync/models"
	"tripsync/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlannerHandler serves the mock planning backend. Conversation and planning
// state is held in memory; the shapes it emits are intentionally unstable,
// which is exactly what the client-side normalizer exists to tolerate.
type PlannerHandler struct {
	Hub    *Hub
	logger *zap.Logger

	mu            sync.Mutex
	conversations map[string]*conversation
	plannings     map[string]*planningSession
}

type conversation struct {
	id            string
	destination   string
	shapeSeq      int
	lastItinerary json.RawMessage
}

type planningSession struct {
	id             string
	req            models.PlanningRequest
	selectedFlight string
	shapeSeq       int
}

// NewPlannerHandler returns a handler pushing realtime updates through hub.
func NewPlannerHandler(hub *Hub) *PlannerHandler {
	h := &PlannerHandler{
		Hub:           hub,
		logger:        utils.GetLogger(),
		conversations: make(map[string]*conversation),
		plannings:     make(map[string]*planningSession),
	}
	if hub != nil {
		hub.StateProvider = h.lastItineraryFor
	}
	return h
}

var smallTalk = []string{
	"Where would you like to go next?",
	"I can plan flights, hotels and a day-by-day itinerary. What do you have in mind?",
	"Tell me a destination and I'll take it from there.",
}

// ChatHandler handles POST /chat.
func (h *PlannerHandler) ChatHandler(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	conv := h.conversation(req.ConversationID)

	if strings.TrimSpace(req.Message) == "" {
		// Application-level failure: reported in-band, not as an HTTP error.
		c.JSON(http.StatusOK, models.ChatResponse{
			Success:        false,
			Message:        "Please type a message so I can help with your trip.",
			ConversationID: conv.id,
		})
		return
	}

	lower := strings.ToLower(req.Message)
	if dest := detectDestination(lower); dest != "" {
		h.mu.Lock()
		conv.destination = dest
		h.mu.Unlock()
	}

	switch {
	case strings.Contains(lower, "itinerary") || strings.Contains(lower, "plan") || strings.Contains(lower, "schedule"):
		payload, base := h.itineraryPayload(conv)
		if h.Hub != nil {
			h.Hub.Push(conv.id, gin.H{"type": "itinerary_update", "itinerary": base})
		}
		c.JSON(http.StatusOK, models.ChatResponse{
			Success:        true,
			Response:       "Here's a draft itinerary for " + h.destinationOf(conv) + ". Want me to adjust anything?",
			ConversationID: conv.id,
			Data:           payload,
		})
	case strings.Contains(lower, "flight"):
		c.JSON(http.StatusOK, models.ChatResponse{
			Success:        true,
			Response:       "I can search flights for you. Tell me the dates, or use the flight search panel.",
			ConversationID: conv.id,
		})
	default:
		c.JSON(http.StatusOK, models.ChatResponse{
			Success:        true,
			Response:       smallTalk[rand.Intn(len(smallTalk))],
			ConversationID: conv.id,
		})
	}
}

// conversation returns the existing conversation or starts a new one.
func (h *PlannerHandler) conversation(id string) *conversation {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id != "" {
		if conv, ok := h.conversations[id]; ok {
			return conv
		}
	} else {
		id = uuid.NewString()
	}
	conv := &conversation{id: id}
	h.conversations[id] = conv
	return conv
}

func (h *PlannerHandler) destinationOf(conv *conversation) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conv.destination == "" {
		return "Barcelona"
	}
	return conv.destination
}

// rememberItinerary stores the latest payload for request_state replay,
// creating the conversation when the websocket connected before any chat.
func (h *PlannerHandler) rememberItinerary(conversationID string, payload json.RawMessage) {
	conv := h.conversation(conversationID)
	h.mu.Lock()
	conv.lastItinerary = payload
	h.mu.Unlock()
}

func (h *PlannerHandler) lastItineraryFor(conversationID string) json.RawMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conv, ok := h.conversations[conversationID]; ok {
		return conv.lastItinerary
	}
	return nil
}

func detectDestination(lower string) string {
	for _, dest := range knownDestinations {
		if strings.Contains(lower, strings.ToLower(dest)) {
			return dest
		}
	}
	return ""
}
