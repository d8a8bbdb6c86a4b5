package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/doorman/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionManager issues and validates signed session tokens
type SessionManager struct {
	secret []byte
	maxAge time.Duration
	clock  func() time.Time
}

// NewSessionManager creates a SessionManager signing with secret; sessions last maxAge
func NewSessionManager(secret string, maxAge time.Duration) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		maxAge: maxAge,
		clock:  time.Now,
	}
}

// SetClock replaces time.Now for issuing and validating tokens
func (sm *SessionManager) SetClock(clock func() time.Time) {
	sm.clock = clock
}

func (sm *SessionManager) MaxAge() time.Duration {
	return sm.maxAge
}

// Issue signs a session for identity obtained through provider and returns
// the token with its expiry.
func (sm *SessionManager) Issue(identity *models.PublicIdentity, provider string) (string, time.Time, error) {
	now := sm.clock()
	expiresAt := now.Add(sm.maxAge)

	claims := &models.SessionClaims{
		Name:     identity.Name,
		Email:    identity.Email,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(sm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate verifies a session token and returns its claims
func (sm *SessionManager) Validate(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sm.secret, nil
	}, jwt.WithTimeFunc(sm.clock), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
