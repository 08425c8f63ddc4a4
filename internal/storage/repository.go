package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the document store backed by a single SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	hub    *store.Hub
	now    func() time.Time
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite schema ready", "schema_version", version, "path", dbPath)

	repo := &SQLiteRepository{db: db, now: time.Now, logger: logger}
	repo.hub = store.NewHub(repo.load, logger)
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) load(ctx context.Context, path store.Path) ([]core.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE user_id = ? AND collection = ? ORDER BY seq`,
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

// Listen implements store.Store
func (r *SQLiteRepository) Listen(ctx context.Context, path store.Path, cs store.Constraints) (<-chan store.Event, error) {
	return r.hub.Listen(ctx, path, cs)
}

// List implements store.Store
func (r *SQLiteRepository) List(ctx context.Context, path store.Path, cs store.Constraints) ([]core.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	docs, err := r.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return store.Apply(docs, cs), nil
}

// Refresh implements store.Refresher
func (r *SQLiteRepository) Refresh(ctx context.Context, path store.Path) {
	r.hub.Refresh(ctx, path)
}

// Create implements store.Store
func (r *SQLiteRepository) Create(ctx context.Context, path store.Path, fields map[string]any) (string, error) {
	if err := path.Validate(); err != nil {
		return "", err
	}
	data, err := core.EncodeFields(store.ResolveFields(fields, r.now()))
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (user_id, collection, id, fields) VALUES (?, ?, ?, ?)`,
		path.UserID, path.Collection, id, string(data)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	r.logger.DebugContext(ctx, "Document saved to SQLite", log.FieldStorePath, path.String(), log.FieldDocumentID, id)

	r.hub.Refresh(ctx, path)
	return id, nil
}

// Update implements store.Store
func (r *SQLiteRepository) Update(ctx context.Context, path store.Path, id string, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE user_id = ? AND collection = ? AND id = ?`,
		path.UserID, path.Collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s/%s: %w", path, id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	current, err := core.DecodeFields(data)
	if err != nil {
		return err
	}
	for k, v := range store.ResolveFields(fields, r.now()) {
		current[k] = v
	}
	merged, err := core.EncodeFields(current)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET fields = ? WHERE user_id = ? AND collection = ? AND id = ?`,
		string(merged), path.UserID, path.Collection, id); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}

	r.hub.Refresh(ctx, path)
	return nil
}

// Delete implements store.Store
func (r *SQLiteRepository) Delete(ctx context.Context, path store.Path, id string) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE user_id = ? AND collection = ? AND id = ?`,
		path.UserID, path.Collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	r.hub.Refresh(ctx, path)
	return nil
}

// CreateUser implements store.UserStore
func (r *SQLiteRepository) CreateUser(ctx context.Context, u store.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	provider := u.Provider
	if provider == "" {
		provider = "password"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, provider, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, provider, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrEmailInUse
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmail implements store.UserStore
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (store.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, provider, created_at FROM users WHERE email = ?`, email))
}

// UserByID implements store.UserStore
func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (store.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, provider, created_at FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (store.User, error) {
	var (
		u       store.User
		created string
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Provider, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("scan user: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}

// revocationTime is fixed width so expiries compare correctly as text.
const revocationTime = "2006-01-02T15:04:05.000000000Z"

// RevokeToken implements store.RevocationStore
func (r *SQLiteRepository) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (id, expires_at) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET expires_at = MAX(expires_at, excluded.expires_at)`,
		tokenID, expiresAt.UTC().Format(revocationTime))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// TokenRevoked implements store.RevocationStore
func (r *SQLiteRepository) TokenRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE id = ? AND expires_at > ?`,
		tokenID, now.UTC().Format(revocationTime)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// PurgeRevokedTokens implements store.RevocationStore
func (r *SQLiteRepository) PurgeRevokedTokens(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at <= ?`, now.UTC().Format(revocationTime))
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return int(n), nil
}

var (
	_ store.Store           = (*SQLiteRepository)(nil)
	_ store.Refresher       = (*SQLiteRepository)(nil)
	_ store.UserStore       = (*SQLiteRepository)(nil)
	_ store.RevocationStore = (*SQLiteRepository)(nil)
)
