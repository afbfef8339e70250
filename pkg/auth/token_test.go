package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, tokenHash, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, tokenHash, 64)
	assert.Equal(t, tg.HashToken(token), tokenHash)
	assert.NoError(t, tg.ValidateTokenFormat(token))
}

func TestTokenGenerator_GenerateToken_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator()

	tokens := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := tg.GenerateToken()
		require.NoError(t, err)
		assert.False(t, tokens[token], "duplicate token generated")
		tokens[token] = true
	}
}

func TestTokenGenerator_HashToken(t *testing.T) {
	tg := NewTokenGenerator()

	hash1 := tg.HashToken("sg_test123456789")
	hash2 := tg.HashToken("sg_test123456789")
	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 64)
	assert.NotEqual(t, hash1, tg.HashToken("sg_different"))
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()
	valid, _, err := tg.GenerateToken()
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", valid, false},
		{"missing prefix", strings.TrimPrefix(valid, TokenPrefix), true},
		{"wrong prefix", "tok_" + strings.TrimPrefix(valid, TokenPrefix), true},
		{"empty token part", TokenPrefix, true},
		{"invalid base64", "sg_!!!invalid!!!", true},
		{"too short", "sg_abc123def456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenGenerator_ExtractPrefix(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"normal token", "sg_abc123def456", "sg_abc123de"},
		{"short token", "sg_abc", "sg_abc"},
		{"no prefix", "invalid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tg.ExtractPrefix(tt.token))
		})
	}
}
