package auth

import (
	"context"
	"sync"

	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/session"
)

// Error is a failed auth operation. Its text is the provider's message and
// is meant to be shown as is.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Gateway runs provider calls for one session. It raises the session's
// loading flag for the duration of a call, sets or clears the identity on
// success and keeps the last failure message.
type Gateway struct {
	provider  Provider
	federated Federated
	holder    *session.Holder
	logger    *log.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	lastErr string
}

type Option func(*Gateway)

func WithFederated(f Federated) Option { return func(g *Gateway) { g.federated = f } }

func WithLogger(l *log.Logger) Option { return func(g *Gateway) { g.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

func NewGateway(p Provider, holder *session.Holder, opts ...Option) *Gateway {
	g := &Gateway{provider: p, holder: holder}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.Discard()
	}
	g.logger = g.logger.WithComponent(log.ComponentAuth)
	return g
}

// LastError returns the message of the last failed call, or "" when the
// last call succeeded.
func (g *Gateway) LastError() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	return g.signIn(ctx, log.OpSignIn, func() (core.Identity, error) {
		return g.provider.SignIn(ctx, email, password)
	})
}

func (g *Gateway) SignUp(ctx context.Context, email, password, displayName string) (core.Identity, error) {
	return g.signIn(ctx, log.OpSignUp, func() (core.Identity, error) {
		return g.provider.SignUp(ctx, email, password, displayName)
	})
}

// AuthURL returns the federated provider's consent page for state.
func (g *Gateway) AuthURL(state string) (string, error) {
	if g.federated == nil {
		return "", &Error{Op: log.OpSignIn, Err: ErrFederatedDisabled}
	}
	return g.federated.AuthURL(state), nil
}

// SignInFederated completes a federated sign-in with the code returned to
// the redirect URL.
func (g *Gateway) SignInFederated(ctx context.Context, code string) (core.Identity, error) {
	return g.signIn(ctx, log.OpSignIn, func() (core.Identity, error) {
		if g.federated == nil {
			return core.Identity{}, ErrFederatedDisabled
		}
		return g.federated.Exchange(ctx, code)
	})
}

// SignOut ends the session. The identity is cleared only when the provider
// succeeds.
func (g *Gateway) SignOut(ctx context.Context) error {
	g.begin()
	var err error
	if id := g.holder.Identity(); id != nil {
		err = g.provider.SignOut(ctx, *id)
	}
	if err != nil {
		return g.fail(ctx, log.OpSignOut, err)
	}
	g.holder.SetIdentity(nil)
	g.metrics.Auth(log.OpSignOut, nil)
	g.logger.InfoContext(ctx, "Signed out")
	return nil
}

func (g *Gateway) signIn(ctx context.Context, op string, call func() (core.Identity, error)) (core.Identity, error) {
	g.begin()
	id, err := call()
	if err != nil {
		return core.Identity{}, g.fail(ctx, op, err)
	}
	g.holder.SetIdentity(&id)
	g.metrics.Auth(op, nil)
	g.logger.InfoContext(ctx, "Signed in", log.FieldOperation, op, log.FieldUserID, id.ID)
	return id, nil
}

func (g *Gateway) begin() {
	g.mu.Lock()
	g.lastErr = ""
	g.mu.Unlock()
	g.holder.SetLoading(true)
}

func (g *Gateway) fail(ctx context.Context, op string, err error) error {
	g.mu.Lock()
	g.lastErr = err.Error()
	g.mu.Unlock()
	g.holder.SetLoading(false)
	g.metrics.Auth(op, err)
	g.logger.WarnContext(ctx, "Auth operation failed", log.FieldOperation, op, log.FieldError, err)
	return &Error{Op: op, Err: err}
}
