package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"yeardash/internal/core"
	"yeardash/internal/store"
)

const ProviderGoogle = "google"

// GoogleConfig holds the OAuth client registered for sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleProvider signs users in with their Google account. Accounts are
// matched by email and created on first sign-in.
type GoogleProvider struct {
	oauth    *oauth2.Config
	users    store.UserStore
	endpoint string
	now      func() time.Time
}

type GoogleOption func(*GoogleProvider)

// WithUserinfoEndpoint points userinfo lookups at another base URL.
func WithUserinfoEndpoint(url string) GoogleOption {
	return func(p *GoogleProvider) { p.endpoint = url }
}

// WithOAuthEndpoint replaces Google's authorization and token URLs.
func WithOAuthEndpoint(ep oauth2.Endpoint) GoogleOption {
	return func(p *GoogleProvider) { p.oauth.Endpoint = ep }
}

func NewGoogleProvider(cfg GoogleConfig, users store.UserStore, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{googleoauth2.UserinfoEmailScope, googleoauth2.UserinfoProfileScope},
		},
		users: users,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GoogleProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (core.Identity, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return core.Identity{}, fmt.Errorf("token exchange: %w", err)
	}

	opts := []option.ClientOption{option.WithHTTPClient(p.oauth.Client(ctx, tok))}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return core.Identity{}, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return core.Identity{}, fmt.Errorf("userinfo: %w", err)
	}
	if info.Email == "" {
		return core.Identity{}, errors.New("google account has no email")
	}

	email := normalizeEmail(info.Email)
	u, err := p.users.UserByEmail(ctx, email)
	if err == nil {
		return identityOf(u), nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return core.Identity{}, fmt.Errorf("find user: %w", err)
	}

	u = store.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: info.Name,
		Provider:    ProviderGoogle,
		CreatedAt:   p.now().UTC(),
	}
	if err := p.users.CreateUser(ctx, u); err != nil {
		// Lost a race with a concurrent first sign-in.
		if errors.Is(err, store.ErrEmailInUse) {
			if existing, lookupErr := p.users.UserByEmail(ctx, email); lookupErr == nil {
				return identityOf(existing), nil
			}
		}
		return core.Identity{}, fmt.Errorf("create user: %w", err)
	}
	return identityOf(u), nil
}

// SignOut is a no-op; Google tokens are not kept.
func (p *GoogleProvider) SignOut(context.Context, core.Identity) error { return nil }
