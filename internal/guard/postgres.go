package guard

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
)

// PostgresStore keeps markers in a table shared by every console instance.
// Markers older than ttl read as absent and can be claimed again.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresStore creates a store with a connection pool. A zero ttl never
// expires markers.
func NewPostgresStore(ctx context.Context, databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS guard_markers (
			key TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, ttl: ttl, now: time.Now}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observePostgres(start time.Time) {
	metrics.GuardStoreLatency.WithLabelValues("postgres").Observe(time.Since(start).Seconds())
}

// cutoff returns the time before which markers are expired.
func (s *PostgresStore) cutoff(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(-s.ttl)
}

func (s *PostgresStore) Get(ctx context.Context, key string) (models.GuardState, error) {
	defer observePostgres(time.Now())
	var state string
	err := s.pool.QueryRow(ctx, `
		SELECT state FROM guard_markers WHERE key = $1 AND updated_at >= $2
	`, key, s.cutoff(s.now())).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GuardAbsent, nil
		}
		return models.GuardAbsent, err
	}
	return models.GuardState(state), nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, state models.GuardState) error {
	defer observePostgres(time.Now())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO guard_markers (key, state, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`, key, string(state), s.now())
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	defer observePostgres(time.Now())
	_, err := s.pool.Exec(ctx, `DELETE FROM guard_markers WHERE key = $1`, key)
	return err
}

// SetIfAbsent inserts the marker, or replaces an expired one, in one statement.
func (s *PostgresStore) SetIfAbsent(ctx context.Context, key string, state models.GuardState) (bool, error) {
	defer observePostgres(time.Now())
	now := s.now()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO guard_markers (key, state, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
		WHERE guard_markers.updated_at < $4
	`, key, string(state), now, s.cutoff(now))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
