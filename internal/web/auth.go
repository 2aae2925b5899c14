package web

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCheck verifies the operator password.
type PasswordCheck struct {
	plain []byte
	hash  []byte
}

// NewPasswordCheck accepts either a cleartext password or a bcrypt
// hash.  The hash wins when both are set.
func NewPasswordCheck(plain, hash string) (*PasswordCheck, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("web password hash: %w", err)
		}
		return &PasswordCheck{hash: []byte(hash)}, nil
	}
	if plain == "" {
		return nil, fmt.Errorf("web password is not set")
	}
	return &PasswordCheck{plain: []byte(plain)}, nil
}

// Verify reports whether candidate is the operator password.
func (c *PasswordCheck) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	if c.hash != nil {
		return bcrypt.CompareHashAndPassword(c.hash, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(c.plain, []byte(candidate)) == 1
}

// HashPassword returns a bcrypt hash suitable for PasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
