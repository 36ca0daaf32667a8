package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var corsHeaders = []string{
	"Accept",
	"Cache-Control",
	"Content-Type",
	"Origin",
	"Sec-WebSocket-Protocol",
	"X-Requested-With",
}

// CORS lets the given origins read the JSON endpoints and open terminal
// sockets. An empty list or "*" admits every origin; other origins get 403.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    corsHeaders,
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
