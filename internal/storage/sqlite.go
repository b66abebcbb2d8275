package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "giftboard/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the durable state of the bot: the append-only gift log, frozen
// weekly rank snapshots, and the schedule marker table.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log.IsZero() {
		log = logx.Nop()
	}
	st := &Store{db: db, log: log}

	// Basic pragmas. WAL lets the schedule loop read while a gift insert is in flight.
	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertGift appends a gift with conflict-ignore semantics on the dedup key.
// It reports whether the row was newly created; a false result is a replay,
// not an error.
func (s *Store) InsertGift(ctx context.Context, e GiftEvent) (inserted bool, err error) {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO gifts(dedup_key, period_id, gifter, gift_name, quantity, value_units, received_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(dedup_key) DO NOTHING`,
		e.DedupKey, e.PeriodID, e.Gifter, e.GiftName, e.Quantity, e.ValueUnits,
		e.ReceivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TopGifters sums value_units*quantity per gifter over the raw log for one
// period, descending by total. Ties keep first-insertion order (MIN(id)), so
// repeated calls over an unchanged log return the same ranking.
func (s *Store) TopGifters(ctx context.Context, periodID string, n int) ([]RankEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT gifter, SUM(value_units * quantity) AS total
		 FROM gifts
		 WHERE period_id = ?
		 GROUP BY gifter
		 ORDER BY total DESC, MIN(id) ASC
		 LIMIT ?`,
		periodID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RankEntry
	for rows.Next() {
		var e RankEntry
		var total sql.NullInt64
		if err := rows.Scan(&e.Gifter, &total); err != nil {
			return nil, err
		}
		e.Total = total.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

// SnapshotExists reports whether finalized rank rows exist for the period.
func (s *Store) SnapshotExists(ctx context.Context, periodID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM weekly_ranks WHERE period_id = ?`, periodID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertSnapshot writes rank rows 1..len(entries) for the period.
// Existing ranks are never overwritten (conflict-ignore on (period_id, rank)).
func (s *Store) InsertSnapshot(ctx context.Context, periodID string, entries []RankEntry) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO weekly_ranks(period_id, rank, gifter, total_value, created_at)
			 VALUES(?,?,?,?,?)
			 ON CONFLICT(period_id, rank) DO NOTHING`,
			periodID, i+1, e.Gifter, e.Total, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SnapshotTop reads the frozen leaderboard for a finalized period, ordered by rank.
func (s *Store) SnapshotTop(ctx context.Context, periodID string) ([]RankEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT gifter, total_value FROM weekly_ranks WHERE period_id = ? ORDER BY rank ASC`,
		periodID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RankEntry
	for rows.Next() {
		var e RankEntry
		if err := rows.Scan(&e.Gifter, &e.Total); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetMarker returns the marker value for key, or def when absent.
func (s *Store) GetMarker(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM markers WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

// SetMarker durably upserts a marker value.
func (s *Store) SetMarker(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO markers(k, v) VALUES(?,?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key, value,
	)
	return err
}

// Stats is a coarse row-count summary used by the maintenance job.
type Stats struct {
	Gifts     int64
	Periods   int64
	Snapshots int64
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COUNT(DISTINCT period_id) FROM gifts`).Scan(&st.Gifts, &st.Periods); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT period_id) FROM weekly_ranks`).Scan(&st.Snapshots); err != nil {
		return st, err
	}
	return st, nil
}

// Checkpoint truncates the WAL. Called periodically so the sidecar files
// don't grow without bound on an always-on process.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
