package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

const anyOrigin = "*"

// OriginFilter rejects browser requests from origins outside the allow-list
// and sets CORS headers for the ones inside it. Requests without an Origin
// header pass through. A "*" entry allows every origin.
func OriginFilter(allowedOrigins []string) gin.HandlerFunc {
	allowAll := slices.Contains(allowedOrigins, anyOrigin)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		// If no origin header (direct WebSocket connection), check Sec-WebSocket-Origin
		if origin == "" {
			origin = c.GetHeader("Sec-WebSocket-Origin")
		}

		allowed := origin != "" && (allowAll || slices.Contains(allowedOrigins, origin))

		if !allowed && origin != "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Origin not allowed",
			})
			return
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
