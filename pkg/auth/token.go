package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix identifies storygate session tokens
	TokenPrefix = "sg_"
	// TokenLength is the number of random bytes (32 bytes = 256 bits)
	TokenLength = 32
	// displayPrefixLength is how many encoded characters ExtractPrefix keeps
	displayPrefixLength = 8
)

// TokenGenerator generates and validates session tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new session token and the hash it is stored under.
// Format: sg_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return token, tg.HashToken(token), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	encodedPart, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return fmt.Errorf("%w: must start with %q", ErrInvalidToken, TokenPrefix)
	}

	raw, err := base64.RawURLEncoding.DecodeString(encodedPart)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(raw) != TokenLength {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidToken, TokenLength, len(raw))
	}

	return nil
}

// ExtractPrefix returns a short, non-secret prefix of a token for logs
func (tg *TokenGenerator) ExtractPrefix(token string) string {
	encodedPart, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return ""
	}
	if len(encodedPart) >= displayPrefixLength {
		return TokenPrefix + encodedPart[:displayPrefixLength]
	}
	return token
}
