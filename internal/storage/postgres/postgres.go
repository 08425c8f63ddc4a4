// Package postgres is the document store backed by PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// Config tunes the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

type Store struct {
	pool   *pgxpool.Pool
	hub    *store.Hub
	now    func() time.Time
	logger *log.Logger
}

// Open connects, migrates and returns the store.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "yeardash"

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := RunMigrations(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	s := &Store{pool: pool, now: time.Now, logger: logger.WithComponent(log.ComponentStorage)}
	s.hub = store.NewHub(s.load, logger)
	s.logger.Info("Connected to PostgreSQL", "schema_version", version)
	return s, nil
}

// RunMigrations applies the embedded schema through a database/sql view of
// the pool and returns the resulting schema version.
func RunMigrations(pool *pgxpool.Pool) (uint, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return 0, fmt.Errorf("create pgx driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) load(ctx context.Context, path store.Path) ([]core.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, fields FROM documents WHERE user_id = $1 AND collection = $2 ORDER BY seq`,
		path.UserID, path.Collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []core.Document{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := core.DecodeFields(data)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, core.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *Store) Listen(ctx context.Context, path store.Path, cs store.Constraints) (<-chan store.Event, error) {
	return s.hub.Listen(ctx, path, cs)
}

func (s *Store) List(ctx context.Context, path store.Path, cs store.Constraints) ([]core.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	docs, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return store.Apply(docs, cs), nil
}

func (s *Store) Refresh(ctx context.Context, path store.Path) {
	s.hub.Refresh(ctx, path)
}

func (s *Store) Create(ctx context.Context, path store.Path, fields map[string]any) (string, error) {
	if err := path.Validate(); err != nil {
		return "", err
	}
	data, err := core.EncodeFields(store.ResolveFields(fields, s.now()))
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (user_id, collection, id, fields) VALUES ($1, $2, $3, $4::jsonb)`,
		path.UserID, path.Collection, id, string(data)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	s.hub.Refresh(ctx, path)
	return id, nil
}

func (s *Store) Update(ctx context.Context, path store.Path, id string, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx,
			`SELECT fields FROM documents WHERE user_id = $1 AND collection = $2 AND id = $3 FOR UPDATE`,
			path.UserID, path.Collection, id).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("update %s/%s: %w", path, id, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		current, err := core.DecodeFields(data)
		if err != nil {
			return err
		}
		for k, v := range store.ResolveFields(fields, s.now()) {
			current[k] = v
		}
		merged, err := core.EncodeFields(current)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE documents SET fields = $4::jsonb WHERE user_id = $1 AND collection = $2 AND id = $3`,
			path.UserID, path.Collection, id, string(merged)); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.hub.Refresh(ctx, path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path store.Path, id string) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE user_id = $1 AND collection = $2 AND id = $3`,
		path.UserID, path.Collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.hub.Refresh(ctx, path)
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u store.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if u.Provider == "" {
		u.Provider = "password"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, provider, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Provider, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrEmailInUse
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, provider, created_at FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, provider, created_at FROM users WHERE id = $1`, id))
}

func (s *Store) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (id, expires_at) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET expires_at = GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)`,
		tokenID, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Store) TokenRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	var revoked bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE id = $1 AND expires_at > $2)`,
		tokenID, now).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *Store) PurgeRevokedTokens(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanUser(row pgx.Row) (store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Provider, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.Refresher       = (*Store)(nil)
	_ store.UserStore       = (*Store)(nil)
	_ store.RevocationStore = (*Store)(nil)
)
