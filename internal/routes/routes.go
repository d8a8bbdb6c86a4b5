package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/doorman/internal/auth"
	"github.com/BradenHooton/doorman/internal/handlers"
	"github.com/BradenHooton/doorman/internal/middleware"
	pkghttp "github.com/BradenHooton/doorman/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers served by the router
type Handlers struct {
	Credentials *handlers.CredentialsHandler
	Session     *handlers.SessionHandler
	OAuth       *handlers.OAuthHandler
	Pages       *handlers.PageHandler
	Health      *handlers.HealthHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	sessions *auth.SessionManager,
	rateLimitConfig middleware.RateLimitConfig,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) {
	router.Get("/health", h.Health.Health)
	router.Handle("/static/*", h.Pages.Static())

	// Every other route sees the session, if there is one
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessions, logger))

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/signIn", http.StatusFound)
		})
		r.Get("/signIn", h.Pages.SignIn)
		r.With(auth.RequireSession("/signIn")).Get("/dashboard", h.Pages.Dashboard)

		r.Route("/api/auth", func(r chi.Router) {
			r.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/callback/credentials", h.Credentials.Callback)

			r.Get("/signin/{provider}", h.OAuth.SignIn)
			r.Get("/callback/{provider}", h.OAuth.Callback)
			r.Get("/providers", h.OAuth.Providers)

			r.Get("/session", h.Session.GetSession)
			r.Post("/signout", h.Session.SignOut)
		})
	})
}
