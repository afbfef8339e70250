// Package middleware provides HTTP middleware for session authentication and rate limiting.
//
// # Middleware Components
//
// SessionMiddleware: Bearer session authentication
//
//	sessions := middleware.NewSessionMiddleware(sessionStore, metrics)
//	router.Use(sessions.Handler)
//	// No Authorization header: the request continues as a guest
//	// Malformed, unknown or expired token: 401
//
// RateLimitMiddleware: Redis-backed fixed-window rate limiting
//
//	limits := middleware.NewRateLimitMiddleware(redisClient, nil, nil)
//	router.Use(limits.Handler)
//
// # Rate Limiting
//
// Guests (by client IP): 100 req/min
// Authenticated users (by user ID): 1000 req/min
//
// # Related Packages
//
//   - pkg/auth: Session storage
//   - pkg/rbac: Ability evaluation for the session user
package middleware
