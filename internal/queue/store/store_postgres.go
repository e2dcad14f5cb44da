package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"esperanza/internal/queue/models"
	"esperanza/internal/triage"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

const entryColumns = `id, patient_id, day, tier, lane, number, reasons, status, entered_at, served_at`

// Postgres stores queue entries in the queue_entries table.
//
// Allocation is serialized with a transaction-scoped advisory lock keyed on
// (day, lane), so concurrent admissions in the same lane queue up rather
// than fight over MAX(number)+1. The table's unique constraints back this
// up: (day, lane, number) catches any allocation race the lock misses, and
// a partial unique index on (patient_id, day) where status is active
// enforces one live admission per patient per day.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Insert(ctx context.Context, e *models.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert entry: %w", err)
	}
	defer tx.Rollback()

	lockKey := string(e.Day) + ":" + string(e.Lane)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("acquire allocation lock: %w", err)
	}

	var maxIssued int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM queue_entries WHERE day = $1 AND lane = $2`,
		string(e.Day), string(e.Lane),
	).Scan(&maxIssued)
	if err != nil {
		return fmt.Errorf("read lane high-water mark: %w", err)
	}
	e.Number = nextNumber(maxIssued, e.Lane)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO queue_entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID.String(), string(e.PatientID), string(e.Day), string(e.Tier), string(e.Lane),
		e.Number, pq.Array(e.Reasons), string(e.Status), e.EnteredAt, nullTime(e.ServedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert entry: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert entry: %w", err)
	}
	return nil
}

func (s *Postgres) FindActive(ctx context.Context, patientID domain.PatientID, day domain.Day) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE patient_id = $1 AND day = $2 AND status IN ('waiting', 'serving')`,
		string(patientID), string(day),
	)
	return scanEntry(row)
}

func (s *Postgres) FindByID(ctx context.Context, id domain.EntryID) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, id.String(),
	)
	return scanEntry(row)
}

func (s *Postgres) Execute(ctx context.Context, id domain.EntryID, validate func(*models.Entry) error, apply func(*models.Entry)) (*models.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE id = $1 FOR UPDATE`, id.String(),
	)
	e, err := scanEntry(row)
	if err != nil {
		return nil, err
	}

	if err := validate(e); err != nil {
		return nil, err
	}
	apply(e)

	_, err = tx.ExecContext(ctx,
		`UPDATE queue_entries SET status = $1, served_at = $2 WHERE id = $3`,
		string(e.Status), nullTime(e.ServedAt), e.ID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return e, nil
}

func (s *Postgres) ListActive(ctx context.Context, day domain.Day) ([]*models.Entry, error) {
	// Tier sorts by clinical rank (critical first), then arrival order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE day = $1 AND status IN ('waiting', 'serving')
		 ORDER BY CASE tier WHEN 'CRITICAL' THEN 1 WHEN 'HIGH' THEN 2 ELSE 3 END, entered_at`,
		string(day),
	)
	if err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Postgres) ListByDay(ctx context.Context, day domain.Day) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE day = $1 ORDER BY entered_at`,
		string(day),
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

type row interface {
	Scan(dest ...any) error
}

func scanEntry(r row) (*models.Entry, error) {
	var (
		e        models.Entry
		id       string
		pid      string
		day      time.Time
		tier     string
		lane     string
		reasons  pq.StringArray
		status   string
		servedAt sql.NullTime
	)
	err := r.Scan(&id, &pid, &day, &tier, &lane, &e.Number, &reasons, &status, &e.EnteredAt, &servedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	e.ID, err = domain.ParseEntryID(id)
	if err != nil {
		return nil, fmt.Errorf("scan entry id: %w", err)
	}
	e.PatientID = domain.PatientID(pid)
	e.Day = domain.DayOf(day)
	e.Tier = triage.Tier(tier)
	e.Lane = models.Lane(lane)
	e.Reasons = []string(reasons)
	e.Status = models.Status(status)
	if servedAt.Valid {
		t := servedAt.Time
		e.ServedAt = &t
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]*models.Entry, error) {
	var out []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
