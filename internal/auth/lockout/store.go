package lockout

import (
	"context"
	"time"
)

// Store persists lockout records. Implementations are pure I/O; the
// lock and window decisions live in Service.
type Store interface {
	// Get returns the record for the identifier, or nil when none exists.
	Get(ctx context.Context, identifier string) (*Record, error)

	// RecordFailure increments the failure count atomically, resetting it
	// first when the window has lapsed, and returns the updated record.
	RecordFailure(ctx context.Context, identifier string, now time.Time) (*Record, error)

	// Update persists lock state computed by the service.
	Update(ctx context.Context, record *Record) error

	// Clear removes the record after a successful authentication.
	Clear(ctx context.Context, identifier string) error
}
