package handlers

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const (
	signInPath         = "/signIn"
	defaultCallbackURL = "/dashboard"
)

// SafeCallbackURL returns raw when it is a path on this site, otherwise fallback.
// Protocol-relative and absolute URLs are refused so a sign-in cannot bounce
// the browser to another origin.
func SafeCallbackURL(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return fallback
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return fallback
	}
	return raw
}

// signInErrorURL is the sign-in page showing the message for kind
func signInErrorURL(kind, callbackURL string) string {
	query := url.Values{}
	query.Set("error", kind)
	if callbackURL != "" && callbackURL != defaultCallbackURL {
		query.Set("callbackUrl", callbackURL)
	}
	return signInPath + "?" + query.Encode()
}

// isFormPost reports whether the request body is an HTML form submission
func isFormPost(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}
