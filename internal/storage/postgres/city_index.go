// Package postgres keeps a relational index of the stored city records.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "cidades_index"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CityIndexConfig controls the Postgres connection pool used for index rows.
type CityIndexConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// CityIndex upserts one row per (uf, nome) pointing at the stored record.
type CityIndex struct {
	pool  execCloser
	table string
}

// NewCityIndex connects to Postgres using the provided config.
func NewCityIndex(ctx context.Context, cfg CityIndexConfig) (*CityIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: database.dsn is required", crawler.ErrInvalidInput)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres dsn: %w", crawler.ErrInvalidInput, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	idx, err := NewCityIndexWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

// NewCityIndexWithPool constructs an index from an existing pool (primarily for testing).
func NewCityIndexWithPool(pool execCloser, table string) (*CityIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", crawler.ErrInvalidInput, table)
	}
	return &CityIndex{pool: pool, table: table}, nil
}

// EnsureSchema creates the index table when it does not exist yet.
func (s *CityIndex) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	uf           TEXT        NOT NULL,
	nome         TEXT        NOT NULL,
	object_key   TEXT        NOT NULL,
	object_uri   TEXT        NOT NULL,
	content_hash TEXT        NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (uf, nome)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Upsert records the latest object written for a city. Rows are keyed like
// the object store, so the newest write replaces the previous row.
func (s *CityIndex) Upsert(ctx context.Context, entry crawler.IndexEntry) error {
	if entry.UF == "" || entry.Nome == "" {
		return fmt.Errorf("%w: uf and nome are required", crawler.ErrInvalidInput)
	}
	generatedAt, err := time.Parse(time.RFC3339Nano, entry.GeneratedAt)
	if err != nil {
		return fmt.Errorf("%w: generated_at: %w", crawler.ErrInvalidInput, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (uf, nome, object_key, object_uri, content_hash, generated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (uf, nome) DO UPDATE SET
	object_key = EXCLUDED.object_key,
	object_uri = EXCLUDED.object_uri,
	content_hash = EXCLUDED.content_hash,
	generated_at = EXCLUDED.generated_at,
	updated_at = now()`, s.table)

	if _, err := s.pool.Exec(ctx, query,
		entry.UF, entry.Nome, entry.Key, entry.URI, entry.ContentHash, generatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("%w: upsert city index: %w", crawler.ErrStorage, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *CityIndex) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
