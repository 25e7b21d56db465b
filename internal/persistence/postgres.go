package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quantfuse/quantfuse/internal/backtest"
)

const comparisonSchema = `
CREATE TABLE IF NOT EXISTS comparisons (
    id          TEXT PRIMARY KEY,
    symbol      TEXT NOT NULL,
    bars        INTEGER NOT NULL,
    payload     JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comparisons_symbol ON comparisons (symbol, created_at DESC);
`

// RunStore persists walk-forward comparisons in postgres. The full result
// lives in a json column; the indexed columns exist for listing.
type RunStore struct {
	db *sqlx.DB
}

// NewRunStore connects and verifies the database.
func NewRunStore(ctx context.Context, dsn string) (*RunStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewRunStoreFromDB(db), nil
}

// NewRunStoreFromDB wraps an existing connection.
func NewRunStoreFromDB(db *sqlx.DB) *RunStore { return &RunStore{db: db} }

// EnsureSchema creates the comparisons table when missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, comparisonSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *RunStore) Close() error { return s.db.Close() }

// SaveComparison upserts one comparison record.
func (s *RunStore) SaveComparison(ctx context.Context, c *backtest.Comparison) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode comparison: %w", err)
	}

	const q = `
		INSERT INTO comparisons (id, symbol, bars, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.Symbol, c.Bars, payload, c.CreatedAt); err != nil {
		return fmt.Errorf("save comparison %s: %w", c.ID, err)
	}
	return nil
}

// GetComparison loads one comparison by id.
func (s *RunStore) GetComparison(ctx context.Context, id string) (*backtest.Comparison, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM comparisons WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comparison %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get comparison %s: %w", id, err)
	}

	var c backtest.Comparison
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode comparison %s: %w", id, err)
	}
	return &c, nil
}

// ListComparisons returns the most recent comparisons for a symbol.
func (s *RunStore) ListComparisons(ctx context.Context, symbol string, limit int) ([]*backtest.Comparison, error) {
	if limit <= 0 {
		limit = 20
	}
	var payloads [][]byte
	const q = `
		SELECT payload FROM comparisons
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := s.db.SelectContext(ctx, &payloads, q, symbol, limit); err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}

	out := make([]*backtest.Comparison, 0, len(payloads))
	for _, p := range payloads {
		var c backtest.Comparison
		if err := json.Unmarshal(p, &c); err != nil {
			return nil, fmt.Errorf("decode comparison: %w", err)
		}
		out = append(out, &c)
	}
	return out, nil
}
