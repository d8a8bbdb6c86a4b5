package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	SessionCookieName    = "session_token"
	OAuthStateCookieName = "oauth_state"

	oauthStateCookiePath = "/api/auth/callback"
)

var errMalformedStateCookie = errors.New("malformed oauth state cookie")

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetSessionCookie stores the session token in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearSessionCookie clears the session cookie
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetSessionCookie retrieves the session token from cookies
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// SetOAuthStateCookie remembers the state and post-login destination of an
// OAuth sign-in until the provider redirects back. It must be Lax or looser
// because the callback is a cross-site top-level navigation.
func SetOAuthStateCookie(w http.ResponseWriter, state, callbackURL string, ttl time.Duration, config CookieConfig) {
	sameSite := parseSameSite(config.SameSite)
	if sameSite == http.SameSiteStrictMode {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    state + "." + base64.RawURLEncoding.EncodeToString([]byte(callbackURL)),
		Path:     oauthStateCookiePath,
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: sameSite,
	})
}

// GetOAuthStateCookie returns the state and callback URL stored by SetOAuthStateCookie
func GetOAuthStateCookie(r *http.Request) (state, callbackURL string, err error) {
	cookie, err := r.Cookie(OAuthStateCookieName)
	if err != nil {
		return "", "", err
	}

	state, encoded, ok := strings.Cut(cookie.Value, ".")
	if !ok || state == "" {
		return "", "", errMalformedStateCookie
	}
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", errMalformedStateCookie
	}
	return state, string(decoded), nil
}

// ClearOAuthStateCookie clears the OAuth state cookie
func ClearOAuthStateCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    "",
		Path:     oauthStateCookiePath,
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
