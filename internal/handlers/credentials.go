package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/doorman/internal/auth"
	"github.com/BradenHooton/doorman/internal/models"
	pkghttp "github.com/BradenHooton/doorman/pkg/http"
	pkglogger "github.com/BradenHooton/doorman/pkg/logger"
)

// kindInvalidRequest marks a payload that failed decoding or validation
const kindInvalidRequest = "InvalidRequest"

const maxFormMemory = 64 << 10

// CredentialAuthenticatorInterface defines the credential sign-in business logic
type CredentialAuthenticatorInterface interface {
	Authenticate(ctx context.Context, email, password string, isRegister bool) (*models.PublicIdentity, error)
}

// CredentialsHandler handles email/password sign-in and registration
type CredentialsHandler struct {
	authenticator CredentialAuthenticatorInterface
	sessions      *auth.SessionManager
	cookies       auth.CookieConfig
	ipConfig      *pkghttp.IPConfig
	logger        *slog.Logger
}

// NewCredentialsHandler creates a new CredentialsHandler
func NewCredentialsHandler(authenticator CredentialAuthenticatorInterface, sessions *auth.SessionManager, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *CredentialsHandler {
	return &CredentialsHandler{
		authenticator: authenticator,
		sessions:      sessions,
		cookies:       cookies,
		ipConfig:      ipConfig,
		logger:        logger,
	}
}

// CredentialsRequest is the credentials callback payload, sent as JSON or a form.
// Empty email or password is left to the authenticator so it reports MissingCredentials.
type CredentialsRequest struct {
	Email       string `json:"email" validate:"max=254"`
	Password    string `json:"password" validate:"maxbytes=72"`
	IsRegister  string `json:"isRegister" validate:"omitempty,oneof=true false"`
	CallbackURL string `json:"callbackUrl" validate:"max=2048"`
}

// SessionResponse is the body of a successful sign-in and of the session endpoint
type SessionResponse struct {
	User    *models.PublicIdentity `json:"user"`
	Expires time.Time              `json:"expires"`
}

// Callback signs in or registers with email and password.
// JSON callers get the session or a kind-coded error; form posts are redirected.
func (h *CredentialsHandler) Callback(w http.ResponseWriter, r *http.Request) {
	form := isFormPost(r)

	req, err := decodeCredentialsRequest(r, form)
	if err == nil {
		err = ValidateRequest(req)
	}
	if err != nil {
		if form {
			http.Redirect(w, r, signInErrorURL(kindInvalidRequest, SafeCallbackURL(req.CallbackURL, "")), http.StatusSeeOther)
			return
		}
		pkghttp.WriteError(w, http.StatusBadRequest, kindInvalidRequest, err.Error())
		return
	}

	callbackURL := SafeCallbackURL(req.CallbackURL, defaultCallbackURL)

	identity, err := h.authenticator.Authenticate(r.Context(), req.Email, req.Password, req.IsRegister == "true")
	if err != nil {
		h.logger.Info("credentials sign-in refused",
			pkglogger.EmailAttr(req.Email),
			slog.String("client_ip", pkghttp.ExtractClientIP(r, h.ipConfig)),
			slog.String("reason", err.Error()))

		if form {
			http.Redirect(w, r, signInErrorURL(rejectionKind(err), callbackURL), http.StatusSeeOther)
			return
		}
		writeRejection(w, err)
		return
	}

	token, expires, err := h.sessions.Issue(identity, models.ProviderCredentials)
	if err != nil {
		h.logger.Error("failed to issue session", slog.Any("error", err))
		if form {
			http.Redirect(w, r, signInErrorURL("SessionError", callbackURL), http.StatusSeeOther)
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	auth.SetSessionCookie(w, token, h.sessions.MaxAge(), h.cookies)

	if form {
		http.Redirect(w, r, callbackURL, http.StatusSeeOther)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{User: identity, Expires: expires})
}

func decodeCredentialsRequest(r *http.Request, form bool) (CredentialsRequest, error) {
	var req CredentialsRequest

	if form {
		if err := parseForm(r); err != nil {
			return req, err
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
		req.IsRegister = r.PostForm.Get("isRegister")
		req.CallbackURL = r.PostForm.Get("callbackUrl")
		return req, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	return req, nil
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

// rejectionKind is the kind carried back to the sign-in page
func rejectionKind(err error) string {
	var rejection *models.Rejection
	if errors.As(err, &rejection) {
		return string(rejection.Kind)
	}
	return "InternalError"
}

// writeRejection maps authenticator refusals to status codes
func writeRejection(w http.ResponseWriter, err error) {
	var rejection *models.Rejection
	if !errors.As(err, &rejection) {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch rejection.Kind {
	case models.KindMissingCredentials:
		status = http.StatusBadRequest
	case models.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case models.KindAlreadyExists:
		status = http.StatusConflict
	case models.KindTemporarilyLocked:
		status = http.StatusTooManyRequests
	case models.KindStorageUnavailable:
		status = http.StatusServiceUnavailable
	}
	pkghttp.WriteError(w, status, string(rejection.Kind), rejection.Message)
}
