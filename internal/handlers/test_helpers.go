package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/doorman/internal/auth"
	"github.com/BradenHooton/doorman/internal/models"
	"github.com/BradenHooton/doorman/internal/oauth"
	pkghttp "github.com/BradenHooton/doorman/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

const testSessionSecret = "test-secret-32-characters-long!!"

// NewTestLogger returns a logger that discards output
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestSessionManager returns a session manager with a fixed test secret
func NewTestSessionManager() *auth.SessionManager {
	return auth.NewSessionManager(testSessionSecret, time.Hour)
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewFormRequest creates an HTML form submission for testing
func NewFormRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// WithSessionContext adds session claims to request context for testing signed-in endpoints
func WithSessionContext(req *http.Request, id, name, email, provider string) *http.Request {
	claims := &models.SessionClaims{
		Name:     name,
		Email:    email,
		Provider: provider,
	}
	claims.Subject = id
	return req.WithContext(auth.WithSession(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// FindCookie returns the named cookie set on the response, or nil
func FindCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// MockAuthenticator implements CredentialAuthenticatorInterface for testing
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, email, password string, isRegister bool) (*models.PublicIdentity, error)
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, email, password string, isRegister bool) (*models.PublicIdentity, error) {
	if m.AuthenticateFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.AuthenticateFunc(ctx, email, password, isRegister)
}

// MockOAuthRegistry implements OAuthRegistryInterface for testing
type MockOAuthRegistry struct {
	Providers        map[string]*oauth.Provider
	AuthenticateFunc func(ctx context.Context, p *oauth.Provider, code string) (*models.PublicIdentity, error)
}

func (m *MockOAuthRegistry) Get(id string) (*oauth.Provider, error) {
	p, ok := m.Providers[id]
	if !ok {
		return nil, oauth.ErrUnknownProvider
	}
	return p, nil
}

func (m *MockOAuthRegistry) List(publicURL string) []oauth.ProviderInfo {
	infos := []oauth.ProviderInfo{{ID: models.ProviderCredentials, Name: "Credentials", Type: "credentials"}}
	for id, p := range m.Providers {
		infos = append(infos, oauth.ProviderInfo{ID: id, Name: p.Name, Type: "oauth"})
	}
	return infos
}

func (m *MockOAuthRegistry) Authenticate(ctx context.Context, p *oauth.Provider, code string) (*models.PublicIdentity, error) {
	if m.AuthenticateFunc == nil {
		return nil, oauth.ErrExchangeFailed
	}
	return m.AuthenticateFunc(ctx, p, code)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
