package login

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password HashPassword accepts
const MinPasswordLength = 8

// ErrPasswordTooShort is returned for passwords under MinPasswordLength
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// passwordCost is the bcrypt work factor
var passwordCost = bcrypt.DefaultCost

// dummyHash is compared against when no user matches, so unknown emails
// take as long to reject as wrong passwords
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storygate-dummy-password"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. An empty hash never
// matches.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
