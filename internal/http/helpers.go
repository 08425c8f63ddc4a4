package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"yeardash/internal/auth"
	"yeardash/internal/core"
	"yeardash/internal/log"
)

// SessionCookie carries the bearer token for browser clients.
const SessionCookie = "yeardash_session"

type identityKey struct{}

func withIdentity(ctx context.Context, id *core.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity resolved for the request, or nil.
func IdentityFrom(ctx context.Context) *core.Identity {
	id, _ := ctx.Value(identityKey{}).(*core.Identity)
	return id
}

// requestToken finds the session token: Authorization header first, then
// the session cookie, then ?access_token= for websocket upgrades.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if r.Header.Get("Upgrade") != "" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeError maps domain and store failures to a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		UnauthorizedError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	case core.IsValidation(err), errors.Is(err, errEmptyPatch):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Store operation failed", log.FieldError, err)
		BadGatewayError(err.Error()).Write(w)
	}
}

// writeAuthError answers with the provider's message.
func writeAuthError(w http.ResponseWriter, err error, message string) {
	if message == "" {
		message = err.Error()
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		UnauthorizedError(message).Write(w)
	case errors.Is(err, auth.ErrEmailInUse):
		ConflictError(message).Write(w)
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		UnprocessableEntityError(message).Write(w)
	case errors.Is(err, auth.ErrFederatedDisabled):
		NotFoundError(message).Write(w)
	default:
		BadGatewayError(message).Write(w)
	}
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// safeReturnPath keeps redirects on this origin.
func safeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	return p
}
