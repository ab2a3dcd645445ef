package routes

import (
	"net/http"
	"time"

	"tripsync/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm the tripsync mock backend"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, h *handlers.PlannerHandler, hub *handlers.Hub) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Conversational endpoints.
	r.POST("/chat", h.ChatHandler)
	r.POST("/save-audio", h.SaveAudioHandler)

	// Step-wise planning endpoints.
	r.POST("/initiate-travel-planning", h.InitiateTravelPlanningHandler)
	r.POST("/flight-search", h.FlightSearchHandler)
	r.POST("/flight-select", h.FlightSelectHandler)
	r.POST("/generate-itinerary", h.GenerateItineraryHandler)

	// Support endpoints.
	r.GET("/map-key", handlers.MapKeyHandler)
	r.GET("/ws/:conversationId", hub.Handle)

	RegisterHealthRoute(r)
}
