package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/doorman/internal/auth"
	"github.com/BradenHooton/doorman/internal/config"
	"github.com/BradenHooton/doorman/internal/database"
	"github.com/BradenHooton/doorman/internal/handlers"
	middlewareCustom "github.com/BradenHooton/doorman/internal/middleware"
	"github.com/BradenHooton/doorman/internal/oauth"
	"github.com/BradenHooton/doorman/internal/repositories"
	"github.com/BradenHooton/doorman/internal/routes"
	"github.com/BradenHooton/doorman/internal/services"
	pkghttp "github.com/BradenHooton/doorman/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// stores bundles the selected backend
type stores struct {
	accounts services.AccountRepository
	attempts services.AttemptRepository
	health   handlers.HealthChecker
	close    func()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Server.StoreBackend),
		slog.String("public_url", cfg.Server.PublicURL),
	)

	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.close()

	authenticator, err := services.NewCredentialAuthenticator(st.accounts, st.attempts, logger)
	if err != nil {
		logger.Error("failed to initialize authenticator", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.MaxAge)
	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Session.CookieSecure,
		SameSite: "lax",
	}

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", slog.Any("error", err))
		os.Exit(1)
	}

	registry := oauth.NewRegistry(cfg.OAuth, cfg.Server.PublicURL, &http.Client{Timeout: 10 * time.Second})
	for _, p := range registry.List(cfg.Server.PublicURL) {
		logger.Info("sign-in provider enabled", slog.String("provider", p.ID))
	}

	h := routes.Handlers{
		Credentials: handlers.NewCredentialsHandler(authenticator, sessionManager, cookieConfig, ipConfig, logger),
		Session:     handlers.NewSessionHandler(cookieConfig),
		OAuth:       handlers.NewOAuthHandler(registry, sessionManager, cookieConfig, cfg.OAuth.StateTTL, cfg.Server.PublicURL, logger),
		Pages:       handlers.NewPageHandler(registry, logger),
		Health:      handlers.NewHealthHandler(st.health, logger),
	}

	// Setup router
	router := chi.NewRouter()

	// RealIP is left out: client addresses come from ExtractClientIP, which only
	// honours forwarding headers from trusted proxies
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	rateLimitConfig := middlewareCustom.DefaultCredentialsRateLimit()
	rateLimitConfig.Requests = cfg.Server.CredentialsRateLimit

	routes.RegisterRoutes(router, h, sessionManager, rateLimitConfig, ipConfig, logger)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// openStores builds the account and attempt stores for the configured backend
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Server.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory store; accounts and lockouts are lost on restart")
		store := repositories.NewMemoryStore()
		return &stores{
			accounts: store,
			attempts: store,
			health:   store,
			close:    func() {},
		}, nil

	case config.StoreBackendPostgres:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		return &stores{
			accounts: repositories.NewAccountRepository(db),
			attempts: repositories.NewAttemptRepository(db),
			health:   db,
			close:    db.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Server.StoreBackend)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
