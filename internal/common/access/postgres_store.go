package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	createCountsTableSQL = `CREATE TABLE IF NOT EXISTS request_counts (
	ip        TEXT PRIMARY KEY,
	count     BIGINT NOT NULL,
	last_seen TIMESTAMPTZ NOT NULL
)`

	upsertCountSQL = `INSERT INTO request_counts (ip, count, last_seen) VALUES ($1, 1, NOW())
ON CONFLICT (ip) DO UPDATE SET count = request_counts.count + 1, last_seen = NOW()
RETURNING count`

	selectCountSQL = `SELECT count FROM request_counts WHERE ip = $1`
)

// PostgresStore keeps tallies in the request_counts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string { return "postgres" }

// EnsureSchema creates the request_counts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCountsTableSQL); err != nil {
		return fmt.Errorf("create request_counts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Increment(ctx context.Context, ip string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, upsertCountSQL, ip).Scan(&n); err != nil {
		return 0, fmt.Errorf("upsert request count: %w", err)
	}
	return n, nil
}

// Count returns the stored tally for ip, zero when absent.
func (s *PostgresStore) Count(ctx context.Context, ip string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, selectCountSQL, ip).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select request count: %w", err)
	}
	return n, nil
}
