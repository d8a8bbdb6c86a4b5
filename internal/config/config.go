package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND
const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Session  SessionConfig
	OAuth    OAuthConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port                 string
	Env                  string
	LogLevel             string
	PublicURL            string
	StoreBackend         string
	TrustedProxies       []string
	CredentialsRateLimit int
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	RequestTimeout       time.Duration
}

type SessionConfig struct {
	Secret       string
	MaxAge       time.Duration
	CookieSecure bool
}

// OAuthConfig holds identity provider credentials. A provider is enabled
// only when both its client id and secret are present.
type OAuthConfig struct {
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleScopes       []string      `env:"GOOGLE_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
	GitHubClientID     string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `env:"GITHUB_CLIENT_SECRET"`
	GitHubScopes       []string      `env:"GITHUB_SCOPES" envSeparator:"," envDefault:"read:user,user:email"`
	StateTTL           time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
}

func (o OAuthConfig) GoogleEnabled() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != ""
}

func (o OAuthConfig) GitHubEnabled() bool {
	return o.GitHubClientID != "" && o.GitHubClientSecret != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	appEnv := getEnv("ENV", "development")
	port := getEnv("PORT", "8080")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "doorman"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:                 port,
			Env:                  appEnv,
			LogLevel:             getEnv("LOG_LEVEL", "info"),
			PublicURL:            strings.TrimSuffix(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
			StoreBackend:         strings.ToLower(getEnv("STORE_BACKEND", StoreBackendMemory)),
			TrustedProxies:       getEnvAsList("TRUSTED_PROXIES"),
			CredentialsRateLimit: getEnvAsInt("CREDENTIALS_RATE_LIMIT", 20),
			ReadTimeout:          getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:         getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:          getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:       getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			Secret:       sessionSecret,
			MaxAge:       getEnvAsDuration("SESSION_MAX_AGE", 30*24*time.Hour),
			CookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", appEnv == "production"),
		},
	}

	if err := validateSessionSecret(sessionSecret, appEnv); err != nil {
		return nil, err
	}

	switch cfg.Server.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required when STORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q (got %q)",
			StoreBackendMemory, StoreBackendPostgres, cfg.Server.StoreBackend)
	}

	if cfg.Session.MaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive")
	}

	if err := env.Parse(&cfg.OAuth); err != nil {
		return nil, fmt.Errorf("parse oauth env: %w", err)
	}

	return cfg, nil
}

// validateSessionSecret enforces minimum security standards for the session signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
