package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailInUse   = errors.New("email already in use")
)

// User is an account known to the local identity provider.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Provider     string
	CreatedAt    time.Time
}

// UserStore persists accounts. Emails are unique and compared as given;
// callers normalize them.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
}

// RevocationStore remembers signed-out session tokens until they expire.
// Entries are only removed by PurgeRevokedTokens once expired.
type RevocationStore interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	TokenRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error)
	PurgeRevokedTokens(ctx context.Context, now time.Time) (int, error)
}
