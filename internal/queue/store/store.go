package store

import (
	"context"

	"esperanza/internal/queue/models"
	"esperanza/pkg/domain"
)

// Store persists queue entries and owns number allocation.
//
// Admission and allocation are a single unit: Insert assigns the entry's
// queue number and persists it in one transaction, so a number is never
// observed without its entry and two concurrent admissions in the same
// (day, lane) can never share a number. Implementations serialize
// allocation per (day, lane); Insert returns sentinel.ErrConflict when it
// loses a race it cannot resolve internally (callers re-check for an
// existing active entry, then retry).
type Store interface {
	// Insert allocates e.Number within e's (day, lane) and persists the
	// entry. Returns sentinel.ErrConflict if the patient already has an
	// active entry for the day, or on an unresolved allocation race.
	Insert(ctx context.Context, e *models.Entry) error

	// FindActive returns the patient's WAITING or SERVING entry for the
	// day, or sentinel.ErrNotFound.
	FindActive(ctx context.Context, patientID domain.PatientID, day domain.Day) (*models.Entry, error)

	FindByID(ctx context.Context, id domain.EntryID) (*models.Entry, error)

	// Execute runs a guarded transition: it loads the entry, runs validate
	// against the current state, applies apply, and persists the result,
	// all while holding whatever lock the implementation uses to serialize
	// writers on that entry. A validate failure aborts without writing.
	Execute(ctx context.Context, id domain.EntryID, validate func(*models.Entry) error, apply func(*models.Entry)) (*models.Entry, error)

	// ListActive returns the day's WAITING and SERVING entries ordered by
	// tier rank, then entry time.
	ListActive(ctx context.Context, day domain.Day) ([]*models.Entry, error)

	// ListByDay returns every entry for the day, any status, in allocation
	// order.
	ListByDay(ctx context.Context, day domain.Day) ([]*models.Entry, error)
}

// nextNumber computes the next queue number for a lane given the highest
// number issued so far today (0 when none). Numbers increment until the
// lane's ceiling, then wrap to its floor. Uniqueness after a wrap is
// enforced by the store's constraints, not here.
func nextNumber(maxIssued int, lane models.Lane) int {
	n := maxIssued + 1
	if n < lane.Floor() || n > lane.Ceiling() {
		return lane.Floor()
	}
	return n
}
