package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/doorman/internal/auth"
	"github.com/BradenHooton/doorman/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Messages for sign-in page error kinds that are not authenticator rejections
var pageErrorMessages = map[string]string{
	kindInvalidRequest: "The sign-in request was not valid",
	kindOAuthSignin:    "Could not start signing in with that provider",
	kindOAuthCallback:  "Signing in with that provider failed",
}

const genericSignInError = "Sign in failed, please try again"

// PageHandler renders the server-side sign-in form and the signed-in landing page
type PageHandler struct {
	registry OAuthRegistryInterface
	logger   *slog.Logger
}

func NewPageHandler(registry OAuthRegistryInterface, logger *slog.Logger) *PageHandler {
	return &PageHandler{registry: registry, logger: logger}
}

type signInPageData struct {
	Error       string
	CallbackURL string
	Register    bool
	Google      bool
	GitHub      bool
}

type dashboardPageData struct {
	Name     string
	Email    string
	Provider string
}

// SignIn renders the sign-in form, or sends a signed-in browser to the dashboard
func (h *PageHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	callbackURL := SafeCallbackURL(query.Get("callbackUrl"), defaultCallbackURL)

	if auth.GetSessionFromContext(r) != nil {
		http.Redirect(w, r, callbackURL, http.StatusFound)
		return
	}

	data := signInPageData{
		CallbackURL: callbackURL,
		Register:    query.Get("mode") == "register",
		Google:      h.providerEnabled(models.ProviderGoogle),
		GitHub:      h.providerEnabled(models.ProviderGitHub),
	}
	if kind := query.Get("error"); kind != "" {
		data.Error = errorMessage(kind)
	}

	h.render(w, "signin.html", data)
}

// Dashboard greets the signed-in identity; RequireSession guards the route
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		http.Redirect(w, r, signInPath, http.StatusFound)
		return
	}

	h.render(w, "dashboard.html", dashboardPageData{
		Name:     claims.Name,
		Email:    claims.Email,
		Provider: claims.Provider,
	})
}

// Static serves the page scripts and styles
func (h *PageHandler) Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (h *PageHandler) providerEnabled(id string) bool {
	_, err := h.registry.Get(id)
	return err == nil
}

// render executes into a buffer so a template failure never sends half a page
func (h *PageHandler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("failed to render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func errorMessage(kind string) string {
	if rejection, ok := models.RejectionForKind(kind); ok {
		return rejection.Message
	}
	if msg, ok := pageErrorMessages[kind]; ok {
		return msg
	}
	return genericSignInError
}
