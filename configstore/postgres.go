package configstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createConfigTableSQL = `CREATE TABLE IF NOT EXISTS core_config_data (
	path  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	selectConfigSQL = `SELECT value FROM core_config_data WHERE path = $1`
	upsertConfigSQL = `INSERT INTO core_config_data (path, value) VALUES ($1, $2)
ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value`
)

// querier is the subset of pgxpool.Pool the backend uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ querier = (*pgxpool.Pool)(nil)

// PostgresBackend reads and writes the core_config_data table.
type PostgresBackend struct {
	db querier
}

// NewPostgresBackend wraps a pool.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{db: pool}
}

// Migrate creates the config table if it does not exist.
func (p *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createConfigTableSQL); err != nil {
		return fmt.Errorf("create config table: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Get(ctx context.Context, path string) (string, error) {
	var value string
	err := p.db.QueryRow(ctx, selectConfigSQL, path).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", path, err)
	}
	return value, nil
}

func (p *PostgresBackend) Set(ctx context.Context, path, value string) error {
	if _, err := p.db.Exec(ctx, upsertConfigSQL, path, value); err != nil {
		return fmt.Errorf("set config %s: %w", path, err)
	}
	return nil
}
