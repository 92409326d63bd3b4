package storage

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"proxyfinder/internal/logger"
	"proxyfinder/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS proxies (
	id               BIGSERIAL PRIMARY KEY,
	ip               TEXT NOT NULL,
	port             INTEGER NOT NULL,
	protocol         TEXT NOT NULL,
	country          TEXT NOT NULL DEFAULT 'Unknown',
	anonymity        TEXT NOT NULL DEFAULT 'Unknown',
	validation_state TEXT NOT NULL DEFAULT 'unknown',
	latency_ms       INTEGER,
	last_run_id      TEXT,
	last_checked_at  TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (ip, port)
)`

type PostgresRepository struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

func NewPostgresRepository(ctx context.Context, dbURL string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Transaction poolers (PgBouncer) reject named prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &PostgresRepository{pool: pool, clock: clock.New()}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Migrate creates the proxies table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}

// SaveBatch inserts new proxies. Duplicates (ip, port) are ignored.
func (r *PostgresRepository) SaveBatch(ctx context.Context, proxies []model.Candidate) error {
	if len(proxies) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range proxies {
		batch.Queue(`
			INSERT INTO proxies (ip, port, protocol, country, anonymity, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ip, port) DO NOTHING
		`, p.IP, p.Port, string(p.Protocol), p.Country, p.Anonymity, r.clock.Now())
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(proxies); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert batch item %d: %w", i, err)
		}
	}

	l := logger.WithComponent("Storage")
	l.Debug().Int("count", len(proxies)).Msg("Saved proxies.")
	return nil
}

// UpdateBatch upserts the validation result of each proxy.
func (r *PostgresRepository) UpdateBatch(ctx context.Context, runID string, proxies []model.Candidate) error {
	if len(proxies) == 0 {
		return nil
	}

	now := r.clock.Now()
	batch := &pgx.Batch{}
	for _, p := range proxies {
		batch.Queue(`
			INSERT INTO proxies (ip, port, protocol, country, anonymity, validation_state, latency_ms, last_run_id, last_checked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (ip, port) DO UPDATE
			SET validation_state = EXCLUDED.validation_state,
				latency_ms = EXCLUDED.latency_ms,
				last_run_id = EXCLUDED.last_run_id,
				last_checked_at = EXCLUDED.last_checked_at
		`, p.IP, p.Port, string(p.Protocol), p.Country, p.Anonymity, p.State.String(), latencyParam(p), runID, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(proxies); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to update batch item %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the total number of proxies.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM proxies").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// latencyParam maps the optional latency to a nullable column value.
func latencyParam(p model.Candidate) *int64 {
	ms, ok := p.LatencyMillis()
	if !ok {
		return nil
	}
	return &ms
}
