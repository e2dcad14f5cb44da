package store

import (
	"context"
	"time"

	"esperanza/internal/patient/models"
	"esperanza/pkg/domain"
)

// Store persists the patient registry across the active and archived
// tables.
//
// Create assigns the patient's date-scoped ID (P-YYYYMMDD-NNN, ordinal
// per registration day) inside the same transaction that inserts the row,
// so two concurrent registrations can never share an ID. Archive and
// Restore move a record between the active and archived tables as a
// single transactional copy-then-delete.
type Store interface {
	// Create assigns p.ID from p.RegisteredAt's day and persists the
	// record.
	Create(ctx context.Context, p *models.Patient) error

	// Get returns an active patient, or sentinel.ErrNotFound. Archived
	// patients are not found.
	Get(ctx context.Context, id domain.PatientID) (*models.Patient, error)

	// Update rewrites an active patient's mutable fields.
	Update(ctx context.Context, p *models.Patient) error

	// Search matches active patients by ID or name fragment,
	// case-insensitive, most recently registered first.
	Search(ctx context.Context, query string, limit int) ([]*models.Patient, error)

	// TouchLastVisit stamps last_visit; missing patients are a no-op
	// error (sentinel.ErrNotFound).
	TouchLastVisit(ctx context.Context, id domain.PatientID, at time.Time) error

	// Archive moves an active patient to the archived table.
	Archive(ctx context.Context, id domain.PatientID, at time.Time) error

	// Restore moves an archived patient back to the active table,
	// clearing ArchivedAt.
	Restore(ctx context.Context, id domain.PatientID) (*models.Patient, error)

	// ListArchived returns archived patients, most recently archived
	// first.
	ListArchived(ctx context.Context, limit int) ([]*models.Patient, error)
}
