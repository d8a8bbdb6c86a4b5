package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/BradenHooton/doorman/internal/config"
	"github.com/BradenHooton/doorman/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newProviderServer fakes a provider's token and profile endpoints
func newProviderServer(t *testing.T, profile map[string]any, emails []map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(emails)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testProvider(id string, server *httptest.Server) *Provider {
	return NewProvider(id, id, "client-id", "client-secret",
		"http://localhost:8080/api/auth/callback/"+id, []string{"email"},
		Endpoints{
			AuthURL:     server.URL + "/authorize",
			TokenURL:    server.URL + "/token",
			UserInfoURL: server.URL + "/user",
			EmailsURL:   server.URL + "/user/emails",
		})
}

func TestNewRegistry_EnablesConfiguredProviders(t *testing.T) {
	cfg := config.OAuthConfig{
		GoogleClientID:     "g-id",
		GoogleClientSecret: "g-secret",
		GoogleScopes:       []string{"openid", "email"},
		GitHubClientID:     "gh-id",
	}

	registry := NewRegistry(cfg, "https://auth.example.com/", nil)

	assert.True(t, registry.Enabled(models.ProviderGoogle))
	assert.False(t, registry.Enabled(models.ProviderGitHub), "a provider needs both id and secret")

	_, err := registry.Get(models.ProviderGitHub)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	infos := registry.List("https://auth.example.com")
	require.Len(t, infos, 2)
	assert.Equal(t, models.ProviderCredentials, infos[0].ID)
	assert.Equal(t, models.ProviderGoogle, infos[1].ID)
	assert.Equal(t, "https://auth.example.com/api/auth/signin/google", infos[1].SignInURL)
	assert.Equal(t, "https://auth.example.com/api/auth/callback/google", infos[1].CallbackURL)
}

func TestProvider_AuthCodeURL(t *testing.T) {
	cfg := config.OAuthConfig{GitHubClientID: "gh-id", GitHubClientSecret: "gh-secret", GitHubScopes: []string{"read:user"}}
	registry := NewRegistry(cfg, "http://localhost:8080", nil)

	provider, err := registry.Get(models.ProviderGitHub)
	require.NoError(t, err)

	parsed, err := url.Parse(provider.AuthCodeURL("state-abc"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", parsed.Host)

	query := parsed.Query()
	assert.Equal(t, "state-abc", query.Get("state"))
	assert.Equal(t, "gh-id", query.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/api/auth/callback/github", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
}

func TestRegistry_Authenticate_Google(t *testing.T) {
	server := newProviderServer(t, map[string]any{
		"sub":   "goog-123",
		"name":  "Alice",
		"email": "Alice@Example.com",
	}, nil)
	provider := testProvider(models.ProviderGoogle, server)
	registry := NewRegistryWith(server.Client(), provider)

	identity, err := registry.Authenticate(context.Background(), provider, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "google-goog-123", identity.ID)
	assert.Equal(t, "Alice", identity.Name)
	assert.Equal(t, "alice@example.com", identity.Email)
}

func TestRegistry_Authenticate_GitHub(t *testing.T) {
	t.Run("public email", func(t *testing.T) {
		server := newProviderServer(t, map[string]any{
			"id":    42,
			"login": "octocat",
			"email": "octo@github.com",
		}, nil)
		provider := testProvider(models.ProviderGitHub, server)
		registry := NewRegistryWith(server.Client(), provider)

		identity, err := registry.Authenticate(context.Background(), provider, "good-code")
		require.NoError(t, err)
		assert.Equal(t, "github-42", identity.ID)
		assert.Equal(t, "octocat", identity.Name)
		assert.Equal(t, "octo@github.com", identity.Email)
	})

	t.Run("private email falls back to primary verified", func(t *testing.T) {
		server := newProviderServer(t, map[string]any{
			"id":    7,
			"login": "ghost",
			"name":  "The Ghost",
		}, []map[string]any{
			{"email": "old@x.com", "primary": false, "verified": true},
			{"email": "unverified@x.com", "primary": true, "verified": false},
			{"email": "ghost@x.com", "primary": true, "verified": true},
		})
		provider := testProvider(models.ProviderGitHub, server)
		registry := NewRegistryWith(server.Client(), provider)

		identity, err := registry.Authenticate(context.Background(), provider, "good-code")
		require.NoError(t, err)
		assert.Equal(t, "The Ghost", identity.Name)
		assert.Equal(t, "ghost@x.com", identity.Email)
	})
}

func TestRegistry_Authenticate_Failures(t *testing.T) {
	t.Run("bad code", func(t *testing.T) {
		server := newProviderServer(t, map[string]any{"sub": "x"}, nil)
		provider := testProvider(models.ProviderGoogle, server)
		registry := NewRegistryWith(server.Client(), provider)

		_, err := registry.Authenticate(context.Background(), provider, "bad-code")
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})

	t.Run("profile without subject", func(t *testing.T) {
		server := newProviderServer(t, map[string]any{"name": "nobody"}, nil)
		provider := testProvider(models.ProviderGoogle, server)
		registry := NewRegistryWith(server.Client(), provider)

		_, err := registry.Authenticate(context.Background(), provider, "good-code")
		assert.ErrorIs(t, err, ErrProfileFailed)
	})

	t.Run("profile endpoint down", func(t *testing.T) {
		server := newProviderServer(t, nil, nil)
		provider := NewProvider(models.ProviderGitHub, "GitHub", "id", "secret", "", nil, Endpoints{
			TokenURL:    server.URL + "/token",
			UserInfoURL: server.URL + "/missing",
		})
		registry := NewRegistryWith(server.Client(), provider)

		_, err := registry.Authenticate(context.Background(), provider, "good-code")
		assert.ErrorIs(t, err, ErrProfileFailed)
	})
}
