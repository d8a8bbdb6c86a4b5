package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Sign-in providers recorded on a session
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
	ProviderGitHub      = "github"
)

// SessionClaims are the claims carried by the signed session cookie.
// RegisteredClaims.Subject holds the identity ID.
type SessionClaims struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// Identity returns the public identity embedded in the session.
func (c *SessionClaims) Identity() *PublicIdentity {
	return &PublicIdentity{
		ID:    c.Subject,
		Name:  c.Name,
		Email: c.Email,
	}
}
