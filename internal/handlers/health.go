package handlers

import (
	"context"
	"log/slog"
	"net/http"

	pkghttp "github.com/BradenHooton/doorman/pkg/http"
)

// HealthChecker is implemented by every store backend
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	checker HealthChecker
	logger  *slog.Logger
}

func NewHealthHandler(checker HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, logger: logger}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.HealthCheck(r.Context()); err != nil {
		h.logger.Error("health check failed", slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Storage backend unavailable")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
