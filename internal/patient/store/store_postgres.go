package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"esperanza/internal/patient/models"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

const patientColumns = `id, first_name, last_name, birthdate, phone, address, pin_hash, registered_at, last_visit`

// Postgres stores the registry in the patients and archived_patients
// tables.
//
// ID assignment is serialized with an advisory lock per registration day:
// the ordinal is MAX over the day's existing IDs plus one, computed and
// inserted in one transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, p *models.Patient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create patient: %w", err)
	}
	defer tx.Rollback()

	day := domain.DayOf(p.RegisteredAt)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "patients:"+string(day)); err != nil {
		return fmt.Errorf("acquire registration lock: %w", err)
	}

	// Archived patients keep their IDs, so the ordinal scan covers both
	// tables; otherwise an archived ID could be reissued.
	var maxOrdinal int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(split_part(id, '-', 3)::int), 0) FROM (
			SELECT id FROM patients WHERE id LIKE $1
			UNION ALL
			SELECT id FROM archived_patients WHERE id LIKE $1
		 ) ids`,
		"P-"+dayCompact(day)+"-%",
	).Scan(&maxOrdinal)
	if err != nil {
		return fmt.Errorf("read registration ordinal: %w", err)
	}
	p.ID = domain.NewPatientID(day, maxOrdinal+1)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO patients (`+patientColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID.String(), p.FirstName, p.LastName, p.Birthdate, p.Phone, p.Address,
		p.PINHash, p.RegisteredAt, nullTime(p.LastVisit),
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create patient: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id domain.PatientID) (*models.Patient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id.String(),
	)
	return scanPatient(row, false)
}

func (s *Postgres) Update(ctx context.Context, p *models.Patient) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE patients
		 SET first_name = $1, last_name = $2, birthdate = $3, phone = $4,
		     address = $5, pin_hash = $6, last_visit = $7
		 WHERE id = $8`,
		p.FirstName, p.LastName, p.Birthdate, p.Phone, p.Address,
		p.PINHash, nullTime(p.LastVisit), p.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) Search(ctx context.Context, query string, limit int) ([]*models.Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patientColumns+` FROM patients
		 WHERE id ILIKE $1 OR first_name || ' ' || last_name ILIKE $1
		 ORDER BY registered_at DESC
		 LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows, false)
}

func (s *Postgres) TouchLastVisit(ctx context.Context, id domain.PatientID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE patients SET last_visit = $1 WHERE id = $2`, at, id.String(),
	)
	if err != nil {
		return fmt.Errorf("touch last visit: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) Archive(ctx context.Context, id domain.PatientID, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive patient: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO archived_patients (`+patientColumns+`, archived_at)
		 SELECT `+patientColumns+`, $2 FROM patients WHERE id = $1`,
		id.String(), at,
	)
	if err != nil {
		return fmt.Errorf("copy patient to archive: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("delete archived patient: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive patient: %w", err)
	}
	return nil
}

func (s *Postgres) Restore(ctx context.Context, id domain.PatientID) (*models.Patient, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin restore patient: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO patients (`+patientColumns+`)
		 SELECT `+patientColumns+` FROM archived_patients WHERE id = $1`,
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("copy patient from archive: %w", err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM archived_patients WHERE id = $1`, id.String()); err != nil {
		return nil, fmt.Errorf("delete restored patient: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id.String(),
	)
	p, err := scanPatient(row, false)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit restore patient: %w", err)
	}
	return p, nil
}

func (s *Postgres) ListArchived(ctx context.Context, limit int) ([]*models.Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patientColumns+`, archived_at FROM archived_patients
		 ORDER BY archived_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list archived patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows, true)
}

type row interface {
	Scan(dest ...any) error
}

func scanPatient(r row, archived bool) (*models.Patient, error) {
	var (
		p         models.Patient
		id        string
		phone     sql.NullString
		address   sql.NullString
		lastVisit sql.NullTime
	)
	dest := []any{&id, &p.FirstName, &p.LastName, &p.Birthdate, &phone, &address, &p.PINHash, &p.RegisteredAt, &lastVisit}
	var archivedAt time.Time
	if archived {
		dest = append(dest, &archivedAt)
	}
	err := r.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}

	p.ID = domain.PatientID(id)
	p.Phone = phone.String
	p.Address = address.String
	if lastVisit.Valid {
		t := lastVisit.Time
		p.LastVisit = &t
	}
	if archived {
		p.ArchivedAt = &archivedAt
	}
	return &p, nil
}

func collectPatients(rows *sql.Rows, archived bool) ([]*models.Patient, error) {
	var out []*models.Patient
	for rows.Next() {
		p, err := scanPatient(rows, archived)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func dayCompact(day domain.Day) string {
	t, _ := time.Parse(domain.DayFormat, string(day))
	return t.Format("20060102")
}
