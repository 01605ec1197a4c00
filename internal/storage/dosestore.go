// Package storage persists the append-only dose history. Timestamps are
// stored in UTC; the daily-ceiling sum brackets a UTC calendar day, which
// keeps the midnight boundary unambiguous and DST-free.
package storage

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/dualtower/hydroai/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS dose_history (
	id         BIGSERIAL PRIMARY KEY,
	tower      TEXT             NOT NULL,
	solution   TEXT             NOT NULL,
	volume_ml  DOUBLE PRECISION NOT NULL,
	dosed_at   TIMESTAMPTZ      NOT NULL,
	reason     TEXT             NOT NULL DEFAULT '',
	auto_dosed BOOLEAN          NOT NULL DEFAULT FALSE,
	ph_before  DOUBLE PRECISION,
	ec_before  DOUBLE PRECISION,
	success    BOOLEAN          NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS dose_history_pair_day
	ON dose_history (tower, solution, dosed_at);
`

// DoseStore is the sqlx repository over the dose_history table.
type DoseStore struct {
	db *sqlx.DB
}

// Open connects to Postgres through the pgx stdlib driver.
func Open(dsn string) (*DoseStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DoseStore{db: db}, nil
}

// Migrate creates the dose history table if missing.
func (s *DoseStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate dose_history: %w", err)
	}
	return nil
}

// InsertDose appends one dose record. The timestamp is normalized to UTC.
func (s *DoseStore) InsertDose(ctx context.Context, rec model.DoseRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dose_history (tower, solution, volume_ml, dosed_at, reason, auto_dosed, ph_before, ec_before, success)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.Tower, rec.Solution, rec.VolumeML, rec.DosedAt.UTC(), rec.Reason,
		rec.AutoDosed, rec.PHBefore, rec.ECBefore, rec.Success)
	if err != nil {
		return fmt.Errorf("insert dose: %w", err)
	}
	return nil
}

// SumVolumeToday returns the total recorded volume for the pair on the UTC
// calendar day containing day.
func (s *DoseStore) SumVolumeToday(ctx context.Context, tower model.Tower, solution model.Solution, day time.Time) (float64, error) {
	start, end := UTCDayBounds(day)
	var total float64
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(volume_ml), 0) FROM dose_history
		 WHERE tower = $1 AND solution = $2 AND dosed_at >= $3 AND dosed_at < $4`,
		tower, solution, start, end)
	if err != nil {
		return 0, fmt.Errorf("sum volume today: %w", err)
	}
	return total, nil
}

// RecentDoses returns the tower's doses since the given instant, newest first.
func (s *DoseStore) RecentDoses(ctx context.Context, tower model.Tower, since time.Time) ([]model.DoseRecord, error) {
	var out []model.DoseRecord
	err := s.db.SelectContext(ctx, &out,
		`SELECT tower, solution, volume_ml, dosed_at, reason, auto_dosed, ph_before, ec_before, success
		 FROM dose_history
		 WHERE tower = $1 AND dosed_at >= $2
		 ORDER BY dosed_at DESC`,
		tower, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("recent doses: %w", err)
	}
	return out, nil
}

// Ping reports database reachability for readiness checks.
func (s *DoseStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *DoseStore) Close() error {
	return s.db.Close()
}

// UTCDayBounds returns the half-open [start, end) interval of the UTC
// calendar day containing t.
func UTCDayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
