package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/doorman/internal/auth"
	"github.com/BradenHooton/doorman/internal/models"
	"github.com/BradenHooton/doorman/internal/oauth"
	pkgauth "github.com/BradenHooton/doorman/pkg/auth"
	pkghttp "github.com/BradenHooton/doorman/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Error kinds shown on the sign-in page for failed provider sign-ins
const (
	kindOAuthSignin   = "OAuthSignin"
	kindOAuthCallback = "OAuthCallback"
)

// OAuthRegistryInterface defines the identity provider operations the handler needs
type OAuthRegistryInterface interface {
	Get(id string) (*oauth.Provider, error)
	List(publicURL string) []oauth.ProviderInfo
	Authenticate(ctx context.Context, p *oauth.Provider, code string) (*models.PublicIdentity, error)
}

var _ OAuthRegistryInterface = (*oauth.Registry)(nil)

// OAuthHandler handles sign-in through external identity providers
type OAuthHandler struct {
	registry  OAuthRegistryInterface
	sessions  *auth.SessionManager
	cookies   auth.CookieConfig
	stateTTL  time.Duration
	publicURL string
	logger    *slog.Logger
}

func NewOAuthHandler(registry OAuthRegistryInterface, sessions *auth.SessionManager, cookies auth.CookieConfig, stateTTL time.Duration, publicURL string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		registry:  registry,
		sessions:  sessions,
		cookies:   cookies,
		stateTTL:  stateTTL,
		publicURL: publicURL,
		logger:    logger,
	}
}

// Providers lists the enabled sign-in providers keyed by id
func (h *OAuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.List(h.publicURL)
	byID := make(map[string]oauth.ProviderInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}
	pkghttp.WriteJSON(w, http.StatusOK, byID)
}

// SignIn redirects the browser to the provider's consent page
func (h *OAuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	provider, err := h.registry.Get(providerID)
	if err != nil {
		pkghttp.WriteNotFound(w, "Unknown sign-in provider")
		return
	}

	state, err := pkgauth.GenerateRandomToken(pkgauth.StateTokenLen)
	if err != nil {
		h.logger.Error("failed to generate oauth state", slog.Any("error", err))
		http.Redirect(w, r, signInErrorURL(kindOAuthSignin, ""), http.StatusSeeOther)
		return
	}

	callbackURL := SafeCallbackURL(r.URL.Query().Get("callbackUrl"), defaultCallbackURL)
	auth.SetOAuthStateCookie(w, state, callbackURL, h.stateTTL, h.cookies)

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes a provider sign-in. The returned state must match the
// cookie set by SignIn before the code is exchanged.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	provider, err := h.registry.Get(providerID)
	if err != nil {
		pkghttp.WriteNotFound(w, "Unknown sign-in provider")
		return
	}

	expectedState, callbackURL, cookieErr := auth.GetOAuthStateCookie(r)
	auth.ClearOAuthStateCookie(w, h.cookies)
	callbackURL = SafeCallbackURL(callbackURL, defaultCallbackURL)

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Info("oauth sign-in declined at provider",
			slog.String("provider", providerID),
			slog.String("provider_error", providerErr))
		http.Redirect(w, r, signInErrorURL(kindOAuthCallback, callbackURL), http.StatusSeeOther)
		return
	}

	state := query.Get("state")
	if cookieErr != nil || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		h.logger.Warn("oauth callback rejected: state mismatch", slog.String("provider", providerID))
		http.Redirect(w, r, signInErrorURL(kindOAuthCallback, callbackURL), http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Redirect(w, r, signInErrorURL(kindOAuthCallback, callbackURL), http.StatusSeeOther)
		return
	}

	identity, err := h.registry.Authenticate(r.Context(), provider, code)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, oauth.ErrExchangeFailed) {
			level = slog.LevelWarn
		}
		h.logger.Log(r.Context(), level, "oauth sign-in failed",
			slog.String("provider", providerID),
			slog.Any("error", err))
		http.Redirect(w, r, signInErrorURL(kindOAuthCallback, callbackURL), http.StatusSeeOther)
		return
	}

	token, _, err := h.sessions.Issue(identity, provider.ID)
	if err != nil {
		h.logger.Error("failed to issue session", slog.Any("error", err))
		http.Redirect(w, r, signInErrorURL(kindOAuthCallback, callbackURL), http.StatusSeeOther)
		return
	}
	auth.SetSessionCookie(w, token, h.sessions.MaxAge(), h.cookies)

	h.logger.Info("oauth sign-in succeeded",
		slog.String("provider", providerID),
		slog.String("identity_id", identity.ID))
	http.Redirect(w, r, callbackURL, http.StatusFound)
}
