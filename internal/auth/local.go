package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"yeardash/internal/core"
	"yeardash/internal/store"
)

const ProviderPassword = "password"

// LocalProvider keeps accounts in a UserStore with bcrypt password hashes.
type LocalProvider struct {
	users store.UserStore
	cost  int
	now   func() time.Time
}

func NewLocalProvider(users store.UserStore) *LocalProvider {
	return &LocalProvider{users: users, cost: bcrypt.DefaultCost, now: time.Now}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	u, err := p.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrUserNotFound) {
		return core.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.Identity{}, fmt.Errorf("find user: %w", err)
	}
	if u.PasswordHash == "" {
		return core.Identity{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return core.Identity{}, ErrInvalidCredentials
	}
	return identityOf(u), nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (core.Identity, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return core.Identity{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return core.Identity{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return core.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	u := store.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		Provider:     ProviderPassword,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrEmailInUse) {
			return core.Identity{}, ErrEmailInUse
		}
		return core.Identity{}, fmt.Errorf("create user: %w", err)
	}
	return identityOf(u), nil
}

// SignOut has nothing to release; tokens are revoked by Tokens.Revoke.
func (p *LocalProvider) SignOut(context.Context, core.Identity) error { return nil }
