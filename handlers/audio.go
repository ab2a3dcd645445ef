// File: handlers/audio.go
package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"tripsync/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// MaxAudioFileSize bounds uploads; clips are short voice commands.
	MaxAudioFileSize = 5 * 1024 * 1024
)

var allowedAudioExtensions = map[string]bool{
	".wav":  true,
	".webm": true,
	".ogg":  true,
}

// SaveAudioHandler handles POST /save-audio. The mock does not run speech
// recognition; it returns a canned transcript and treats it as a chat turn.
func (h *PlannerHandler) SaveAudioHandler(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing audio file"})
		return
	}
	defer file.Close()

	if header.Size > MaxAudioFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file too large"})
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAudioExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported audio format"})
		return
	}

	h.logger.Info("received audio clip",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size))

	c.JSON(http.StatusOK, models.TranscriptResponse{
		Success:    true,
		Transcript: "I'd like to plan a weekend trip to Barcelona.",
		Response:   "Barcelona is a great choice! Ask me for an itinerary whenever you're ready.",
	})
}
