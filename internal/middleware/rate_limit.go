package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/doorman/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultCredentialsRateLimit is applied to the credentials endpoint. It sits
// well above the per-email lockout threshold so it only slows bulk guessing.
func DefaultCredentialsRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Requests: 20,
		Window:   1 * time.Minute,
	}
}

// RateLimitByIP limits requests per client IP. Forwarding headers count only
// when they come from a proxy trusted by ipConfig.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, please slow down")
		}),
	)
}
