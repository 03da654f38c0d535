// Package store persists call records and run state in Postgres and owns
// the deduplication invariants: unique fingerprint and unique link are
// enforced by the schema, not only by pre-checks.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"editalwatch/collector-service/internal/dates"
	"editalwatch/collector-service/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id BIGSERIAL PRIMARY KEY,
	title TEXT,
	agency TEXT,
	deadline TEXT,
	amount TEXT,
	link TEXT UNIQUE,
	source_label TEXT,
	published_at TEXT,
	fingerprint TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_state (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const lastRunKey = "last_run"

// lastRunLayout matches the display format the UI has always shown.
const lastRunLayout = "02/01/2006 15:04"

const selectColumns = `id, COALESCE(title,''), COALESCE(agency,''), COALESCE(deadline,''),
	COALESCE(amount,''), COALESCE(link,''), COALESCE(source_label,''),
	COALESCE(published_at,''), COALESCE(fingerprint,''), created_at`

// Store wraps a pgx pool plus an optional fingerprint cache.
type Store struct {
	pool  *pgxpool.Pool
	cache *Cache
}

// New connects to Postgres and verifies connectivity. A failure here is
// fatal to the process: nothing can run without the store.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Init creates the tables when they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UseCache attaches a fingerprint cache consulted before hitting the
// calls table.
func (s *Store) UseCache(c *Cache) { s.cache = c }

// Close releases the pool. The cache has its own Close.
func (s *Store) Close() { s.pool.Close() }

// Exists reports whether a record with this fingerprint is already stored.
func (s *Store) Exists(ctx context.Context, fp string) (bool, error) {
	if s.cache != nil && s.cache.Has(ctx, fp) {
		return true, nil
	}
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM calls WHERE fingerprint = $1 LIMIT 1`, fp).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if s.cache != nil {
		s.cache.Add(ctx, fp)
	}
	return true, nil
}

// Insert stores rec unless a record with the same fingerprint or the same
// link already exists; a conflict on either constraint degrades to "not
// newly inserted", never an error. Reports whether a row was written.
func (s *Store) Insert(ctx context.Context, rec model.CallRecord) (bool, error) {
	if rec.Link == "" {
		return false, errors.New("record has no link")
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO calls (title, agency, deadline, amount, link, source_label, published_at, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`,
		rec.Title, rec.Agency, rec.Deadline, rec.Amount,
		rec.Link, rec.SourceLabel, rec.PublishedAt, rec.Fingerprint,
	)
	if err != nil {
		return false, fmt.Errorf("insert call: %w", err)
	}
	if s.cache != nil {
		s.cache.Add(ctx, rec.Fingerprint)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns stored records most-recent-first. A non-empty term filters
// on title or agency, case-insensitively.
func (s *Store) List(ctx context.Context, term string) ([]model.CallRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if term != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+selectColumns+` FROM calls
			 WHERE title ILIKE $1 OR agency ILIKE $1
			 ORDER BY created_at DESC`,
			"%"+term+"%")
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+selectColumns+` FROM calls ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var records []model.CallRecord
	for rows.Next() {
		var r model.CallRecord
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Agency, &r.Deadline, &r.Amount,
			&r.Link, &r.SourceLabel, &r.PublishedAt, &r.Fingerprint, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// All returns every stored record, most-recent-first.
func (s *Store) All(ctx context.Context) ([]model.CallRecord, error) {
	return s.List(ctx, "")
}

// PurgeExpired re-parses every non-empty deadline and deletes records
// whose deadline is strictly past the grace margin. Unparseable deadlines
// are kept. Idempotent; returns the number of rows removed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, deadline FROM calls WHERE deadline IS NOT NULL AND deadline <> ''`)
	if err != nil {
		return 0, fmt.Errorf("query deadlines: %w", err)
	}

	var expired []int64
	for rows.Next() {
		var (
			id       int64
			deadline string
		)
		if err := rows.Scan(&id, &deadline); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan deadline: %w", err)
		}
		if dates.Expired(deadline, now) {
			expired = append(expired, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate deadlines: %w", err)
	}

	removed := 0
	for _, id := range expired {
		tag, err := s.pool.Exec(ctx, `DELETE FROM calls WHERE id = $1`, id)
		if err != nil {
			return removed, fmt.Errorf("delete call %d: %w", id, err)
		}
		removed += int(tag.RowsAffected())
	}
	return removed, nil
}

// Reset is the administrative purge: it deletes every record and the
// run-state entry, and flushes the cache. Returns how many records were
// removed.
func (s *Store) Reset(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM calls`)
	if err != nil {
		return 0, fmt.Errorf("delete calls: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM run_state WHERE key = $1`, lastRunKey); err != nil {
		return int(tag.RowsAffected()), fmt.Errorf("delete run state: %w", err)
	}
	if s.cache != nil {
		s.cache.Clear(ctx)
	}
	return int(tag.RowsAffected()), nil
}

// SetLastRun records the completion time of a collection run. Called
// unconditionally at the end of every run, manual or scheduled.
func (s *Store) SetLastRun(ctx context.Context, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		lastRunKey, now.Format(lastRunLayout),
	)
	if err != nil {
		return fmt.Errorf("record last run: %w", err)
	}
	return nil
}

// LastRun returns the recorded completion time of the most recent run.
// The second return is false when no run has completed yet.
func (s *Store) LastRun(ctx context.Context) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM run_state WHERE key = $1`, lastRunKey).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read last run: %w", err)
	}
	return value, true, nil
}
