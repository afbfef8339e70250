// Package auth issues and resolves the bearer sessions that identify callers.
//
// # Tokens
//
// A session token has the form sg_<base64url(32 random bytes)>. Only the
// SHA-256 hash of a token is stored, so a leaked Redis snapshot cannot be
// replayed:
//
//	store := auth.NewSessionStore(redisClient, "session")
//	token, session, err := store.Create(ctx, userID, 24*time.Hour)
//
// # Lookup
//
// Lookup rejects malformed tokens with ErrInvalidToken before touching Redis
// and answers unknown or expired tokens with ErrSessionNotFound. Expiry is the
// Redis key TTL.
//
// # Related Packages
//
//   - pkg/middleware: SessionMiddleware puts the session user into the context
//   - pkg/rbac: turns the session user into an ability
package auth
