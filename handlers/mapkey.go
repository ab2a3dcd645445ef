// File: handlers/mapkey.go
package handlers

import (
	"net/http"

	"tripsync/config"
	"tripsync/utils"

	"github.com/gin-gonic/gin"
)

// MapKeyHandler serves the map provider key from the same origin so it is
// never baked into client bundles.
func MapKeyHandler(c *gin.Context) {
	key := config.AppConfig.MapProviderKey
	if key == "" {
		utils.JSONError(c, http.StatusServiceUnavailable, "Map provider key not configured", "set MAP_PROVIDER_KEY")
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}
