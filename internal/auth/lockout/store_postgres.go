package lockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Postgres persists lockout records so locks survive restarts and apply
// across kiosk instances.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Get(ctx context.Context, identifier string) (*Record, error) {
	query := `
		SELECT identifier, failure_count, last_failure_at, locked_until
		FROM pin_lockouts
		WHERE identifier = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lockout record: %w", err)
	}
	return record, nil
}

func (s *Postgres) RecordFailure(ctx context.Context, identifier string, now time.Time) (*Record, error) {
	// Single upsert so concurrent failures cannot lose increments. The
	// count resets when the previous failure fell outside the window.
	query := `
		INSERT INTO pin_lockouts (identifier, failure_count, last_failure_at, locked_until)
		VALUES ($1, 1, $2, NULL)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = CASE
				WHEN pin_lockouts.last_failure_at < $3 THEN 1
				ELSE pin_lockouts.failure_count + 1
			END,
			last_failure_at = $2
		RETURNING identifier, failure_count, last_failure_at, locked_until
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, identifier, now, now.Add(-Window)))
	if err != nil {
		return nil, fmt.Errorf("record pin failure: %w", err)
	}
	return record, nil
}

func (s *Postgres) Update(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO pin_lockouts (identifier, failure_count, last_failure_at, locked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = EXCLUDED.failure_count,
			last_failure_at = EXCLUDED.last_failure_at,
			locked_until = EXCLUDED.locked_until
	`
	if _, err := s.db.ExecContext(ctx, query,
		record.Identifier, record.FailureCount, record.LastFailureAt, record.LockedUntil,
	); err != nil {
		return fmt.Errorf("update lockout record: %w", err)
	}
	return nil
}

func (s *Postgres) Clear(ctx context.Context, identifier string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pin_lockouts WHERE identifier = $1`, identifier); err != nil {
		return fmt.Errorf("clear lockout record: %w", err)
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanRecord(rw row) (*Record, error) {
	var (
		r           Record
		lockedUntil sql.NullTime
	)
	if err := rw.Scan(&r.Identifier, &r.FailureCount, &r.LastFailureAt, &lockedUntil); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		r.LockedUntil = &t
	}
	return &r, nil
}
