package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/store"
)

var ErrInvalidToken = errors.New("invalid token")

const purgeTimeout = 10 * time.Second

type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and checks HS256 session tokens. Revoked token ids live in
// the backing store until the token would have expired, so every replica
// sharing that store rejects them.
type Tokens struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoked store.RevocationStore
}

func NewTokens(secret string, ttl time.Duration, revoked store.RevocationStore) *Tokens {
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: revoked,
	}
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for id and returns it with its expiry.
func (t *Tokens) Issue(id core.Identity) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := &Claims{
		UserID: id.ID,
		Email:  id.Email,
		Name:   id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns its identity. A failed revocation lookup
// rejects the token.
func (t *Tokens) Parse(ctx context.Context, raw string) (core.Identity, error) {
	c, err := t.parse(raw)
	if err != nil {
		return core.Identity{}, err
	}
	revoked, err := t.revoked.TokenRevoked(ctx, c.ID, t.now())
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if revoked {
		return core.Identity{}, ErrInvalidToken
	}
	return core.Identity{ID: c.UserID, Email: c.Email, DisplayName: c.Name}, nil
}

// Revoke makes a valid token unusable until it expires. Invalid tokens are
// ignored.
func (t *Tokens) Revoke(ctx context.Context, raw string) error {
	c, err := t.parse(raw)
	if err != nil {
		return nil
	}
	exp := t.now().Add(t.ttl)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return t.revoked.RevokeToken(ctx, c.ID, exp)
}

// CleanExpired drops revocations whose tokens have expired anyway.
func (t *Tokens) CleanExpired() int {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	n, err := t.revoked.PurgeRevokedTokens(ctx, t.now())
	if err != nil {
		log.FromContext(ctx).Warn("Failed to purge revoked tokens", log.FieldError, err)
	}
	return n
}

func (t *Tokens) parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.UserID == "" || c.ID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}
