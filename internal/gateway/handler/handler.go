// Package handler exposes the authentication flows over HTTP: local login,
// the provider redirect/callback pair, logout, and the protected resource.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"authgate/internal/gateway"
	"authgate/internal/platform/middleware"
	"authgate/internal/session"
	jsonResponse "authgate/internal/transport/http/json"
	"authgate/internal/transport/http/shared"
	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/secrets"
	s "authgate/pkg/string"
	"authgate/pkg/validation"
)

// Service defines the authentication operations the handler drives.
type Service interface {
	LoginLocal(ctx context.Context, email, password string) (*session.Session, error)
	BeginOAuthLogin(ctx context.Context, state string, forceReauth bool) (string, error)
	CompleteOAuthLogin(ctx context.Context, code string) (*session.Session, error)
	Logout(ctx context.Context, token, returnTo string) *gateway.LogoutResult
	RequireSession(ctx context.Context, token, route string) (*session.Session, error)
	CurrentSession(ctx context.Context, token string) *session.Session
}

type Handler struct {
	gateway    Service
	logger     *slog.Logger
	cookieName string
	sessionTTL time.Duration
}

func New(gw Service, logger *slog.Logger, cookieName string, sessionTTL time.Duration) *Handler {
	if cookieName == "" {
		cookieName = "authgate_session"
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}

	return &Handler{
		gateway:    gw,
		logger:     logger,
		cookieName: cookieName,
		sessionTTL: sessionTTL,
	}
}

// Register registers the gateway routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.HandleHome)
	r.Post("/login", h.HandleLogin)
	r.Get("/login", h.HandleOAuthLogin)
	r.Get("/force-relogin", h.HandleForceRelogin)
	r.Get("/callback", h.HandleCallback)
	r.Post("/logout", h.HandleLogout)
	r.Get("/logout", h.HandleLogout)
	r.Get("/protected", h.HandleProtected)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userPayload struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AuthMethod  string `json:"auth_method"`
}

func toPayload(sess *session.Session) userPayload {
	return userPayload{
		SubjectID:   sess.SubjectID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		AuthMethod:  string(sess.AuthMethod),
	}
}

// HandleHome implements GET /. Public; reports whether the caller is signed
// in without treating absence of a session as a security event.
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	token := shared.SessionToken(r, h.cookieName)

	if sess := h.gateway.CurrentSession(r.Context(), token); sess != nil {
		jsonResponse.WriteJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"user":          toPayload(sess),
		})
		return
	}

	jsonResponse.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": false,
	})
}

// HandleLogin implements POST /login for local credentials. Accepts JSON and
// classic form bodies so both API clients and plain HTML forms work.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := decodeLoginRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid login request body"))
		return
	}

	s.TrimStrings(&req.Email)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	sess, err := h.gateway.LoginLocal(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "local login failed",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, err)
		return
	}

	shared.SetSessionCookie(w, r, h.cookieName, sess.Token, h.sessionTTL)
	jsonResponse.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          toPayload(sess),
	})
}

func decodeLoginRequest(r *http.Request) (*loginRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return &loginRequest{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		}, nil
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// loginFormPage is the fallback for deployments without a provider: a bare
// form posting to the local credential endpoint.
const loginFormPage = `<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<form method="post" action="/login">
<label>Email <input type="email" name="email" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>`

// HandleOAuthLogin implements GET /login: redirects the browser to the
// identity provider, carrying a fresh anti-forgery state. Without a
// configured provider it serves the local login form instead.
func (h *Handler) HandleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	h.beginOAuth(w, r, false)
}

// HandleForceRelogin implements GET /force-relogin: like /login but asks the
// provider to re-prompt for credentials even if it holds a live session.
func (h *Handler) HandleForceRelogin(w http.ResponseWriter, r *http.Request) {
	h.beginOAuth(w, r, true)
}

func (h *Handler) beginOAuth(w http.ResponseWriter, r *http.Request, forceReauth bool) {
	ctx := r.Context()

	state, err := secrets.GenerateToken()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate oauth state", "error", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not start login"))
		return
	}

	redirect, err := h.gateway.BeginOAuthLogin(ctx, state, forceReauth)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeMisconfiguredProvider) && wantsHTML(r) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(loginFormPage))
			return
		}
		shared.WriteError(w, err)
		return
	}

	shared.SetStateCookie(w, r, state)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleCallback implements GET /callback, the return leg of the provider
// flow. The state parameter must match the cookie set when the flow began;
// otherwise the authorization code is ignored.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		h.logger.WarnContext(ctx, "provider returned an error on callback",
			"provider_error", errCode,
			"request_id", requestID,
		)
		shared.ClearStateCookie(w, r)
		shared.WriteError(w, dErrors.New(dErrors.CodeProviderError, "authorization was not granted"))
		return
	}

	stateCookie, err := r.Cookie(shared.StateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != query.Get("state") {
		h.logger.WarnContext(ctx, "oauth state mismatch on callback",
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "login state mismatch, start over"))
		return
	}
	shared.ClearStateCookie(w, r)

	sess, err := h.gateway.CompleteOAuthLogin(ctx, query.Get("code"))
	if err != nil {
		h.logger.WarnContext(ctx, "oauth login failed",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, err)
		return
	}

	shared.SetSessionCookie(w, r, h.cookieName, sess.Token, h.sessionTTL)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout implements POST and GET /logout. Destroying an absent session
// is fine; the response is the same either way. OAuth sessions additionally
// get bounced through the provider so its session ends too.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := shared.SessionToken(r, h.cookieName)

	result := h.gateway.Logout(ctx, token, homeURL(r))
	shared.ClearSessionCookie(w, r, h.cookieName)

	if result.RedirectURL != "" {
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		return
	}

	if r.Method == http.MethodGet {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	jsonResponse.WriteJSON(w, http.StatusOK, map[string]any{
		"logged_out": true,
	})
}

// homeURL rebuilds the absolute URL of the site root from the request, used
// as the post-logout landing page.
func homeURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

// HandleProtected implements GET /protected. Browsers without a session are
// sent to the login flow; API clients get a 401.
func (h *Handler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := shared.SessionToken(r, h.cookieName)

	sess, err := h.gateway.RequireSession(ctx, token, "/protected")
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeMissingSession) && wantsHTML(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		shared.WriteError(w, err)
		return
	}

	jsonResponse.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "hello, " + displayName(sess),
		"user":    toPayload(sess),
	})
}

func displayName(sess *session.Session) string {
	if sess.DisplayName != "" {
		return sess.DisplayName
	}
	if sess.Email != "" {
		return sess.Email
	}
	return sess.SubjectID
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
