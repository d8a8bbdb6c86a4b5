package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/doorman/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureSession(seen **models.SessionClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = GetSessionFromContext(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware(t *testing.T) {
	sm := NewSessionManager(testSecret, time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	token, _, err := sm.Issue(testIdentity, models.ProviderGitHub)
	require.NoError(t, err)

	tests := []struct {
		name        string
		cookie      string
		wantSession bool
	}{
		{"no cookie", "", false},
		{"valid cookie", token, true},
		{"tampered cookie", token + "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *models.SessionClaims
			handler := SessionMiddleware(sm, logger)(captureSession(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.wantSession {
				require.NotNil(t, seen)
				assert.Equal(t, "u@test.com", seen.Email)
				assert.Equal(t, models.ProviderGitHub, seen.Provider)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireSession("/signIn")(next)

	t.Run("anonymous is redirected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/signIn", rec.Header().Get("Location"))
	})

	t.Run("session passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req = req.WithContext(WithSession(req.Context(), &models.SessionClaims{Email: "u@test.com"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
