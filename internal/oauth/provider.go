// Package oauth signs users in through external identity providers.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/BradenHooton/doorman/internal/config"
	"github.com/BradenHooton/doorman/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrExchangeFailed  = errors.New("oauth code exchange failed")
	ErrProfileFailed   = errors.New("oauth profile request failed")
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// Endpoints locates a provider's authorization, token and profile URLs
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	EmailsURL   string // GitHub only
}

// Provider is one configured identity provider
type Provider struct {
	ID          string
	Name        string
	oauth       *oauth2.Config
	userInfoURL string
	emailsURL   string
}

// NewProvider builds a provider; id must be models.ProviderGoogle or models.ProviderGitHub
func NewProvider(id, name, clientID, clientSecret, redirectURL string, scopes []string, ep Endpoints) *Provider {
	return &Provider{
		ID:   id,
		Name: name,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  ep.AuthURL,
				TokenURL: ep.TokenURL,
			},
		},
		userInfoURL: ep.UserInfoURL,
		emailsURL:   ep.EmailsURL,
	}
}

// AuthCodeURL is where the browser is sent to start signing in
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// ProviderInfo describes an enabled provider to clients
type ProviderInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SignInURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

// Registry holds the enabled providers
type Registry struct {
	providers  map[string]*Provider
	httpClient *http.Client
}

// NewRegistry enables every provider with both a client id and secret.
// Redirect URIs are derived from publicURL.
func NewRegistry(cfg config.OAuthConfig, publicURL string, httpClient *http.Client) *Registry {
	var providers []*Provider

	if cfg.GoogleEnabled() {
		providers = append(providers, NewProvider(
			models.ProviderGoogle, "Google",
			cfg.GoogleClientID, cfg.GoogleClientSecret,
			CallbackURL(publicURL, models.ProviderGoogle),
			cfg.GoogleScopes,
			Endpoints{
				AuthURL:     endpoints.Google.AuthURL,
				TokenURL:    endpoints.Google.TokenURL,
				UserInfoURL: googleUserInfoURL,
			},
		))
	}

	if cfg.GitHubEnabled() {
		providers = append(providers, NewProvider(
			models.ProviderGitHub, "GitHub",
			cfg.GitHubClientID, cfg.GitHubClientSecret,
			CallbackURL(publicURL, models.ProviderGitHub),
			cfg.GitHubScopes,
			Endpoints{
				AuthURL:     endpoints.GitHub.AuthURL,
				TokenURL:    endpoints.GitHub.TokenURL,
				UserInfoURL: githubUserURL,
				EmailsURL:   githubEmailsURL,
			},
		))
	}

	return NewRegistryWith(httpClient, providers...)
}

// NewRegistryWith builds a registry from explicit providers
func NewRegistryWith(httpClient *http.Client, providers ...*Provider) *Registry {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	r := &Registry{
		providers:  make(map[string]*Provider, len(providers)),
		httpClient: httpClient,
	}
	for _, p := range providers {
		r.providers[p.ID] = p
	}
	return r
}

// CallbackURL is the redirect URI registered with a provider
func CallbackURL(publicURL, providerID string) string {
	return strings.TrimSuffix(publicURL, "/") + "/api/auth/callback/" + providerID
}

func (r *Registry) Get(id string) (*Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// List returns the enabled providers ordered by id, always including credentials
func (r *Registry) List(publicURL string) []ProviderInfo {
	base := strings.TrimSuffix(publicURL, "/")
	infos := []ProviderInfo{{
		ID:          models.ProviderCredentials,
		Name:        "Credentials",
		Type:        "credentials",
		SignInURL:   base + "/api/auth/callback/credentials",
		CallbackURL: base + "/api/auth/callback/credentials",
	}}

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := r.providers[id]
		infos = append(infos, ProviderInfo{
			ID:          p.ID,
			Name:        p.Name,
			Type:        "oauth",
			SignInURL:   base + "/api/auth/signin/" + p.ID,
			CallbackURL: p.oauth.RedirectURL,
		})
	}
	return infos
}

func (r *Registry) Enabled(id string) bool {
	_, ok := r.providers[id]
	return ok
}

// Authenticate exchanges an authorization code and returns the provider's
// view of the user. The identity is not stored anywhere.
func (r *Registry) Authenticate(ctx context.Context, p *Provider, code string) (*models.PublicIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	client := p.oauth.Client(ctx, token)
	switch p.ID {
	case models.ProviderGoogle:
		return fetchGoogleProfile(ctx, client, p.userInfoURL)
	case models.ProviderGitHub:
		return fetchGitHubProfile(ctx, client, p.userInfoURL, p.emailsURL)
	default:
		return nil, ErrUnknownProvider
	}
}

func fetchGoogleProfile(ctx context.Context, client *http.Client, userInfoURL string) (*models.PublicIdentity, error) {
	var payload struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, userInfoURL, &payload); err != nil {
		return nil, err
	}
	if payload.Sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrProfileFailed)
	}

	return &models.PublicIdentity{
		ID:    models.ProviderGoogle + "-" + payload.Sub,
		Name:  firstNonEmpty(payload.Name, payload.Email, payload.Sub),
		Email: strings.ToLower(payload.Email),
	}, nil
}

func fetchGitHubProfile(ctx context.Context, client *http.Client, userURL, emailsURL string) (*models.PublicIdentity, error) {
	var payload struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, userURL, &payload); err != nil {
		return nil, err
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrProfileFailed)
	}

	// A private profile email is only visible through the emails endpoint
	email := payload.Email
	if email == "" && emailsURL != "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, emailsURL, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	return &models.PublicIdentity{
		ID:    models.ProviderGitHub + "-" + strconv.FormatInt(payload.ID, 10),
		Name:  firstNonEmpty(payload.Name, payload.Login, email),
		Email: strings.ToLower(email),
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProfileFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileFailed, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
