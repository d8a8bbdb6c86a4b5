package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/doorman/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
)

// SessionMiddleware decodes the session cookie and injects its claims into
// the request context. Requests without a valid session pass through anonymous.
func SessionMiddleware(sm *SessionManager, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := GetSessionCookie(r)
			if err != nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := sm.Validate(token)
			if err != nil {
				logger.Debug("ignoring invalid session cookie", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims)))
		})
	}
}

// RequireSession redirects anonymous requests to redirectTo.
// Must be used after SessionMiddleware.
func RequireSession(redirectTo string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetSessionFromContext(r) == nil {
				http.Redirect(w, r, redirectTo, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns a copy of ctx carrying claims
func WithSession(ctx context.Context, claims *models.SessionClaims) context.Context {
	return context.WithValue(ctx, SessionContextKey, claims)
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
