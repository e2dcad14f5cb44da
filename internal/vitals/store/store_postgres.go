package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"esperanza/internal/vitals/models"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

// Postgres persists vitals readings in PostgreSQL.
//
// The open-reading invariant is enforced by a partial unique index on
// (patient_id, day) WHERE completed_at IS NULL; merges run in a transaction
// that locks the open row with SELECT ... FOR UPDATE, so the merge and the
// completeness check cannot interleave across workers.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const readingColumns = `id, patient_id, day, device_id, heart_rate, temperature, oxygen_saturation,
	systolic, diastolic, height_cm, weight_kg, bmi, recorded_at, updated_at, completed_at`

func (s *Postgres) MergeOpen(ctx context.Context, patientID domain.PatientID, day domain.Day, partial models.Partial, now time.Time) (*models.Reading, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin merge tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT ` + readingColumns + `
		FROM vitals_readings
		WHERE patient_id = $1 AND day = $2 AND completed_at IS NULL
		FOR UPDATE
	`
	reading, err := scanReading(tx.QueryRowContext(ctx, query, patientID.String(), day.String()))
	created := false
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lock open reading: %w", err)
		}
		reading = models.NewReading(patientID, day, now)
		created = true
	}

	if err := reading.Apply(partial, now); err != nil {
		return nil, err
	}
	if reading.Complete() {
		reading.Freeze(now)
	}

	if created {
		if err := insertReading(ctx, tx, reading); err != nil {
			if isUniqueViolation(err) {
				// Lost the open-reading creation race; the winner's row
				// exists now. The caller retries and merges into it.
				return nil, fmt.Errorf("open reading exists: %w", sentinel.ErrConflict)
			}
			return nil, fmt.Errorf("insert reading: %w", err)
		}
	} else if err := updateReading(ctx, tx, reading); err != nil {
		return nil, fmt.Errorf("update reading: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge tx: %w", err)
	}
	return reading, nil
}

func (s *Postgres) FindOpen(ctx context.Context, patientID domain.PatientID, day domain.Day) (*models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM vitals_readings
		WHERE patient_id = $1 AND day = $2 AND completed_at IS NULL
	`
	reading, err := scanReading(s.db.QueryRowContext(ctx, query, patientID.String(), day.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find open reading: %w", err)
	}
	return reading, nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.ReadingID) (*models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM vitals_readings WHERE id = $1`
	reading, err := scanReading(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find reading: %w", err)
	}
	return reading, nil
}

func (s *Postgres) ListByPatient(ctx context.Context, patientID domain.PatientID, limit int) ([]*models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM vitals_readings
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
	`
	args := []any{patientID.String()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []*models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, reading)
	}
	return out, rows.Err()
}

func (s *Postgres) LatestComplete(ctx context.Context, patientID domain.PatientID) (*models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM vitals_readings
		WHERE patient_id = $1 AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT 1
	`
	reading, err := scanReading(s.db.QueryRowContext(ctx, query, patientID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest complete reading: %w", err)
	}
	return reading, nil
}

func insertReading(ctx context.Context, tx *sql.Tx, r *models.Reading) error {
	query := `
		INSERT INTO vitals_readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := tx.ExecContext(ctx, query, readingArgs(r)...)
	return err
}

func updateReading(ctx context.Context, tx *sql.Tx, r *models.Reading) error {
	query := `
		UPDATE vitals_readings SET
			device_id = $4, heart_rate = $5, temperature = $6, oxygen_saturation = $7,
			systolic = $8, diastolic = $9, height_cm = $10, weight_kg = $11, bmi = $12,
			recorded_at = $13, updated_at = $14, completed_at = $15
		WHERE id = $1 AND patient_id = $2 AND day = $3
	`
	_, err := tx.ExecContext(ctx, query, readingArgs(r)...)
	return err
}

func readingArgs(r *models.Reading) []any {
	return []any{
		uuid.UUID(r.ID),
		r.PatientID.String(),
		r.Day.String(),
		nullString(r.DeviceID),
		r.HeartRate,
		r.Temperature,
		r.SpO2,
		r.Systolic,
		r.Diastolic,
		r.HeightCM,
		r.WeightKG,
		r.BMI,
		r.RecordedAt,
		r.UpdatedAt,
		r.CompletedAt,
	}
}

type row interface {
	Scan(dest ...any) error
}

func scanReading(rw row) (*models.Reading, error) {
	var (
		r        models.Reading
		id       uuid.UUID
		day      time.Time
		deviceID sql.NullString
	)
	if err := rw.Scan(
		&id, (*string)(&r.PatientID), &day, &deviceID,
		&r.HeartRate, &r.Temperature, &r.SpO2,
		&r.Systolic, &r.Diastolic, &r.HeightCM, &r.WeightKG, &r.BMI,
		&r.RecordedAt, &r.UpdatedAt, &r.CompletedAt,
	); err != nil {
		return nil, err
	}
	r.ID = domain.ReadingID(id)
	r.Day = domain.DayOf(day)
	if deviceID.Valid {
		r.DeviceID = deviceID.String
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
