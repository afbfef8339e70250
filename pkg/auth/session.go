package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid token format")
)

// Session is the server-side record behind a bearer token
type Session struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps sessions in Redis, keyed by the token hash. Expiry is
// delegated to the key TTL.
type SessionStore struct {
	redis  *redis.Client
	tokens *TokenGenerator
	prefix string
}

// NewSessionStore creates a Redis-backed session store
func NewSessionStore(redisClient *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "session"
	}
	return &SessionStore{
		redis:  redisClient,
		tokens: NewTokenGenerator(),
		prefix: prefix,
	}
}

func (s *SessionStore) key(tokenHash string) string {
	return fmt.Sprintf("%s:%s", s.prefix, tokenHash)
}

// Create starts a session for userID and returns its bearer token. The token
// is returned once and only its hash is stored.
func (s *SessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, *Session, error) {
	if ttl <= 0 {
		return "", nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}

	token, tokenHash, err := s.tokens.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	session := &Session{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(tokenHash), payload, ttl).Err(); err != nil {
		return "", nil, fmt.Errorf("redis error: %w", err)
	}

	return token, session, nil
}

// Lookup resolves a bearer token to its session
func (s *SessionStore) Lookup(ctx context.Context, token string) (*Session, error) {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return nil, err
	}

	payload, err := s.redis.Get(ctx, s.key(s.tokens.HashToken(token))).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Revoke ends the session behind token
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		return err
	}

	deleted, err := s.redis.Del(ctx, s.key(s.tokens.HashToken(token))).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if deleted == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// TokenPrefix returns the loggable prefix of token
func (s *SessionStore) TokenPrefix(token string) string {
	return s.tokens.ExtractPrefix(token)
}
