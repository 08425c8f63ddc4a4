package http

import (
	"context"
	"net/http"
	"time"

	"yeardash/internal/auth"
	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/session"
)

// SessionResponse is returned by every successful sign-in.
type SessionResponse struct {
	Identity  core.Identity `json:"identity"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// authGateway builds a gateway for one request. The holder starts with the
// identity the request already carries.
func (s *Server) authGateway(r *http.Request) (*auth.Gateway, *session.Holder) {
	holder := session.New(nil)
	holder.SetIdentity(IdentityFrom(r.Context()))
	opts := []auth.Option{auth.WithLogger(s.logger), auth.WithMetrics(s.metrics)}
	if s.deps.Federated != nil {
		opts = append(opts, auth.WithFederated(s.deps.Federated))
	}
	return auth.NewGateway(s.deps.Provider, holder, opts...), holder
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if fields := s.validator.Validate(&req); fields != nil {
		ValidationErrorResponse(fields).Write(w)
		return
	}

	gw, _ := s.authGateway(r)
	id, err := gw.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err, gw.LastError())
		return
	}
	s.startSession(w, r, id, http.StatusOK)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if fields := s.validator.Validate(&req); fields != nil {
		ValidationErrorResponse(fields).Write(w)
		return
	}

	gw, _ := s.authGateway(r)
	id, err := gw.SignUp(r.Context(), req.Email, req.Password, sanitizeInput(req.DisplayName))
	if err != nil {
		writeAuthError(w, err, gw.LastError())
		return
	}
	s.startSession(w, r, id, http.StatusCreated)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, id core.Identity, code int) {
	token, expires, err := s.deps.Tokens.Issue(id)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to issue session token", log.FieldError, err)
		InternalServerError("could not start session").Write(w)
		return
	}
	setSessionCookie(w, r, token, expires)
	NewJSONResponse().Status(code).JSON(SessionResponse{Identity: id, Token: token, ExpiresAt: expires}).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	gw, _ := s.authGateway(r)
	if err := gw.SignOut(r.Context()); err != nil {
		writeAuthError(w, err, gw.LastError())
		return
	}
	if token := requestToken(r); token != "" {
		if err := s.deps.Tokens.Revoke(r.Context(), token); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to revoke session token", log.FieldError, err)
			InternalServerError("sign out failed").Write(w)
			return
		}
	}
	clearSessionCookie(w, r)
	NoContent(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
		return
	}
	OK(w, id)
}

// handleGoogleStart redirects to the consent page. ?returnTo= must be a
// path on this site.
func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	gw, _ := s.authGateway(r)
	state := s.deps.States.New(safeReturnPath(r.URL.Query().Get("returnTo")))
	target, err := gw.AuthURL(state)
	if err != nil {
		s.deps.States.Consume(state)
		writeAuthError(w, err, gw.LastError())
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	returnTo, ok := s.deps.States.Consume(q.Get("state"))
	if !ok {
		BadRequestError("invalid or expired sign-in state").Write(w)
		return
	}
	if msg := q.Get("error"); msg != "" {
		UnauthorizedError("sign-in was cancelled: " + msg).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	gw, _ := s.authGateway(r)
	id, err := gw.SignInFederated(ctx, q.Get("code"))
	if err != nil {
		writeAuthError(w, err, gw.LastError())
		return
	}
	token, expires, err := s.deps.Tokens.Issue(id)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to issue session token", log.FieldError, err)
		InternalServerError("could not start session").Write(w)
		return
	}
	setSessionCookie(w, r, token, expires)
	http.Redirect(w, r, returnTo, http.StatusFound)
}
