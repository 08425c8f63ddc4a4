// Package auth signs users in and out and keeps the session identity in
// step with the result.
package auth

import (
	"context"
	"errors"
	"strings"

	"yeardash/internal/core"
	"yeardash/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
	ErrEmailInUse         = store.ErrEmailInUse
	ErrFederatedDisabled  = errors.New("federated sign-in is not configured")
)

const minPasswordLength = 6

// Provider is an identity provider with email and password accounts.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (core.Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (core.Identity, error)
	SignOut(ctx context.Context, id core.Identity) error
}

// Federated is an identity provider reached through a redirect.
type Federated interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (core.Identity, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func identityOf(u store.User) core.Identity {
	return core.Identity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}
