package handlers

import (
	"net/http"

	"github.com/BradenHooton/doorman/internal/auth"
	pkghttp "github.com/BradenHooton/doorman/pkg/http"
)

// SessionHandler exposes the current session and signs out
type SessionHandler struct {
	cookies auth.CookieConfig
}

func NewSessionHandler(cookies auth.CookieConfig) *SessionHandler {
	return &SessionHandler{cookies: cookies}
}

// GetSession returns the signed-in identity, or an empty object when anonymous
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteJSON(w, http.StatusOK, struct{}{})
		return
	}

	resp := SessionResponse{User: claims.Identity()}
	if claims.ExpiresAt != nil {
		resp.Expires = claims.ExpiresAt.Time.UTC()
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// SignOut clears the session cookie
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookies)

	if isFormPost(r) {
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
