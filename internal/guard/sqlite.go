package guard

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
)

// SQLiteStore keeps markers in a local SQLite file. Markers older than ttl
// read as absent and can be claimed again.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens (and creates) the marker database.
// If dbPath is empty, defaults to "./data/guard.db". A zero ttl never expires markers.
func NewSQLiteStore(ctx context.Context, dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/guard.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates the marker table if it doesn't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS guard_markers (
		key TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func observeSQLite(start time.Time) {
	metrics.GuardStoreLatency.WithLabelValues("sqlite").Observe(time.Since(start).Seconds())
}

// cutoff returns the unix-nano time before which markers are expired.
func (s *SQLiteStore) cutoff(now time.Time) int64 {
	if s.ttl <= 0 {
		return 0
	}
	return now.Add(-s.ttl).UnixNano()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (models.GuardState, error) {
	defer observeSQLite(time.Now())
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM guard_markers WHERE key = ? AND updated_at >= ?
	`, key, s.cutoff(s.now())).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GuardAbsent, nil
		}
		return models.GuardAbsent, err
	}
	return models.GuardState(state), nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, state models.GuardState) error {
	defer observeSQLite(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guard_markers (key, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, key, string(state), s.now().UnixNano())
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	defer observeSQLite(time.Now())
	_, err := s.db.ExecContext(ctx, `DELETE FROM guard_markers WHERE key = ?`, key)
	return err
}

// SetIfAbsent inserts the marker, or replaces an expired one, in one statement.
func (s *SQLiteStore) SetIfAbsent(ctx context.Context, key string, state models.GuardState) (bool, error) {
	defer observeSQLite(time.Now())
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO guard_markers (key, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
		WHERE guard_markers.updated_at < ?
	`, key, string(state), now.UnixNano(), s.cutoff(now))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
