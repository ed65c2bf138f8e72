package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are display-only fields decoded from a JWT-shaped token.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	ID    string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Claims decodes the current token without verifying it.
// It reports false for opaque tokens and never affects the session state.
func (s *Store) Claims() (Claims, bool) {
	token, ok := s.Token()
	if !ok {
		return Claims{}, false
	}
	return DecodeClaims(token)
}

// DecodeClaims decodes token without signature or expiry checks.
func DecodeClaims(token string) (Claims, bool) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, false
	}
	c := Claims{Subject: tc.Subject, Email: tc.Email}
	if c.Subject == "" {
		c.Subject = tc.ID
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, true
}

// Expired reports whether the claims carry an expiry before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
