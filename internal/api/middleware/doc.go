// Package middleware provides the HTTP middleware of the terminal host.
//
//   - CORS: cross-origin access to the JSON endpoints and the terminal socket
//   - RateLimit: per-IP token bucket, idle clients pruned after IdleTTL
//
// Example Usage:
//
//	router.Use(middleware.CORS([]string{"http://localhost:5173"}))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
