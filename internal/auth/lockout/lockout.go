// Package lockout throttles PIN guessing. Both the staff login and the
// kiosk check-in verify a short numeric PIN, so repeated failures for the
// same identifier are counted in a sliding window and the identifier is
// hard-locked once the window limit is hit.
package lockout

import (
	"time"
)

const (
	// AttemptsPerWindow failures within Window lock the identifier.
	AttemptsPerWindow = 5
	Window            = 15 * time.Minute
	LockDuration      = 15 * time.Minute
)

// Record tracks PIN failures for one identifier (a patient ID or a staff
// username).
type Record struct {
	Identifier    string     `json:"identifier"`
	FailureCount  int        `json:"failure_count"`
	LastFailureAt time.Time  `json:"last_failure_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
}

// LockedAt reports whether the record is hard-locked at the given time.
func (r *Record) LockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// WindowExpired reports whether the failure window has lapsed, which
// resets the count on the next failure.
func (r *Record) WindowExpired(now time.Time) bool {
	return now.Sub(r.LastFailureAt) > Window
}

// ShouldLock reports whether the latest failure pushed the record over
// the window limit.
func (r *Record) ShouldLock() bool {
	return r.FailureCount >= AttemptsPerWindow
}

// ApplyLock hard-locks the record.
func (r *Record) ApplyLock(now time.Time) {
	until := now.Add(LockDuration)
	r.LockedUntil = &until
}

// RetryAfter is how long the caller must wait before the lock lifts.
// Zero when the record is not locked.
func (r *Record) RetryAfter(now time.Time) time.Duration {
	if !r.LockedAt(now) {
		return 0
	}
	return r.LockedUntil.Sub(now)
}

// Clone returns a copy so stores can hand out records without aliasing
// their internal state.
func (r *Record) Clone() *Record {
	out := *r
	if r.LockedUntil != nil {
		t := *r.LockedUntil
		out.LockedUntil = &t
	}
	return &out
}
