// Package middleware provides the HTTP middleware stack of the bundle API.
//
// Middleware stack includes:
//   - RequestID: ULID request IDs, echoed in X-Request-ID
//   - Logger: one zap line per request
//   - Recovery: panic recovery with a JSON 500
//   - CORS: cross-origin access for renderers
//   - RateLimit: per-IP token bucket rate limiting with idle eviction
//   - GlobalRateLimit: a single bucket shared by all clients, used for saves
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
