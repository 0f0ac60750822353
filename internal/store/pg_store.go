package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	carterrors "github.com/abgdnv/gocart/internal/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp applies all pending migrations of the cart_kv schema to the database at url.
func MigrateUp(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// PgStore implements KV on the cart_kv PostgreSQL table.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of KV using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

func (p *PgStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRow(ctx, `SELECT value FROM cart_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", carterrors.ErrKeyNotFound
		}
		return "", fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, nil
}

func (p *PgStore) Set(ctx context.Context, key, value string) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO cart_kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close closes the underlying pool.
func (p *PgStore) Close() error {
	p.db.Close()
	return nil
}
