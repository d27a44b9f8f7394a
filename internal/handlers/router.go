package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mossy-p/watchparty/config"
	"github.com/mossy-p/watchparty/internal/metrics"
	"github.com/rs/zerolog"

	pkglog "github.com/mossy-p/watchparty/internal/log"
)

// NewRouter wires the HTTP routes and the socket endpoint.
func NewRouter(cfg *config.Config, hub *Hub, m *metrics.Metrics, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", Health)
		apiGroup.GET("/rooms/:roomId", GetRoom(hub, logger))
	}

	router.GET("/ws", ServeWS(hub, cfg.WebSocket, logger))

	return router
}
