package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	pkglog "github.com/mossy-p/watchparty/internal/log"
)

// GetRoom returns the current state of a live room (public)
func GetRoom(hub *Hub, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")

		room, ok, err := hub.Room(c.Request.Context(), roomID)
		if err != nil {
			status := http.StatusServiceUnavailable
			if !errors.Is(err, ErrHubStopped) {
				status = http.StatusGatewayTimeout
			}
			logger.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("room lookup failed")
			c.JSON(status, gin.H{"error": "Room lookup unavailable"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}

		c.JSON(http.StatusOK, room)
	}
}

// Health is a stateless liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
