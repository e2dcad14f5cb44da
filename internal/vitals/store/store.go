package store

import (
	"context"
	"time"

	"esperanza/internal/vitals/models"
	"esperanza/pkg/domain"
)

// Store persists vitals readings.
//
// MergeOpen is the serialization point for the accumulator: implementations
// must apply the partial to the open reading for (patient, day), creating
// one if absent, under a lock scoped to that pair, so two near-simultaneous
// partials can neither create duplicate open readings nor both race past the
// completeness check. When the merge makes the reading complete the store
// freezes it before releasing the lock.
//
// A lost creation race surfaces as sentinel.ErrConflict; the service
// retries, at which point the winner's row exists and merges normally.
type Store interface {
	MergeOpen(ctx context.Context, patientID domain.PatientID, day domain.Day, partial models.Partial, now time.Time) (*models.Reading, error)

	// FindOpen returns the open reading for (patient, day), or
	// sentinel.ErrNotFound.
	FindOpen(ctx context.Context, patientID domain.PatientID, day domain.Day) (*models.Reading, error)

	// FindByID returns a reading by ID, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id domain.ReadingID) (*models.Reading, error)

	// ListByPatient returns the patient's readings, most recent first.
	ListByPatient(ctx context.Context, patientID domain.PatientID, limit int) ([]*models.Reading, error)

	// LatestComplete returns the most recent completed reading for the
	// patient, or sentinel.ErrNotFound.
	LatestComplete(ctx context.Context, patientID domain.PatientID) (*models.Reading, error)
}
