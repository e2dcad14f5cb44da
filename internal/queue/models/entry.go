package models

import (
	"fmt"
	"time"

	"esperanza/internal/triage"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
)

// Status is the lifecycle state of a queue entry.
//
// Transitions: WAITING -> SERVING -> COMPLETED, and WAITING or SERVING ->
// CANCELLED (no-show / staff cancel). COMPLETED and CANCELLED are terminal;
// they reject every further transition.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the entry still occupies the patient's single
// active-admission slot for the day.
func (s Status) Active() bool { return s == StatusWaiting || s == StatusServing }

// Terminal reports whether the status rejects all further transitions.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// CanTransitionTo encodes the state machine's guards.
func (s Status) CanTransitionTo(target Status) bool {
	switch target {
	case StatusServing:
		return s == StatusWaiting
	case StatusCompleted, StatusCancelled:
		return s == StatusWaiting || s == StatusServing
	}
	return false
}

// Lane is one of the two independent queue-number spaces. Tier determines
// lane: CRITICAL and HIGH route to the priority lane, NORMAL to the normal
// lane.
type Lane string

const (
	LanePriority Lane = "priority"
	LaneNormal   Lane = "normal"
)

// Floor is the first number issued in the lane on an empty day, and the
// wrap target once Ceiling is exhausted.
func (l Lane) Floor() int {
	if l == LanePriority {
		return 300
	}
	return 1
}

func (l Lane) Ceiling() int {
	if l == LanePriority {
		return 999
	}
	return 299
}

// LaneFor routes a priority tier to its lane.
func LaneFor(tier triage.Tier) Lane {
	if tier == triage.TierCritical || tier == triage.TierHigh {
		return LanePriority
	}
	return LaneNormal
}

// FormatNumber renders a queue number for tickets and displays. Numbers
// are integers everywhere else; zero-padding happens only at this
// presentation boundary.
func FormatNumber(n int) string { return fmt.Sprintf("%03d", n) }

// Entry is one admission event: a patient's slot in a day's queue.
//
// Invariants:
//   - Number is unique within (day, lane); numbers are never reused within
//     a day, even after the entry completes.
//   - At most one entry with an active status per (patient, day).
//   - Terminal entries are immutable except for audit archival.
type Entry struct {
	ID        domain.EntryID   `json:"id"`
	PatientID domain.PatientID `json:"patient_id"`
	Day       domain.Day       `json:"day"`
	Tier      triage.Tier      `json:"priority"`
	Lane      Lane             `json:"lane"`
	Number    int              `json:"queue_number"`
	Reasons   []string         `json:"reasons,omitempty"`
	Status    Status           `json:"status"`
	EnteredAt time.Time        `json:"entered_at"`
	ServedAt  *time.Time       `json:"served_at,omitempty"`
}

// NewEntry builds a WAITING entry. The queue number is assigned by the
// store inside the admission transaction.
func NewEntry(patientID domain.PatientID, day domain.Day, tier triage.Tier, reasons []string, now time.Time) *Entry {
	return &Entry{
		ID:        domain.NewEntryID(),
		PatientID: patientID,
		Day:       day,
		Tier:      tier,
		Lane:      LaneFor(tier),
		Reasons:   reasons,
		Status:    StatusWaiting,
		EnteredAt: now,
	}
}

// DisplayNumber is the zero-padded form shown on tickets and the board.
func (e *Entry) DisplayNumber() string { return FormatNumber(e.Number) }

// CanServe checks the WAITING -> SERVING guard. Use with ApplyServe in
// Execute callbacks so the store holds its lock across both.
func (e *Entry) CanServe() error {
	if !e.Status.CanTransitionTo(StatusServing) {
		return invalidTransition(e.Status, StatusServing)
	}
	return nil
}

// ApplyServe transitions the entry to SERVING. Call CanServe first.
func (e *Entry) ApplyServe(time.Time) {
	e.Status = StatusServing
}

// CanComplete checks the guard for COMPLETED.
func (e *Entry) CanComplete() error {
	if !e.Status.CanTransitionTo(StatusCompleted) {
		return invalidTransition(e.Status, StatusCompleted)
	}
	return nil
}

// ApplyComplete transitions the entry to COMPLETED and stamps served_at.
// served_at is set on completion only.
func (e *Entry) ApplyComplete(now time.Time) {
	e.Status = StatusCompleted
	t := now
	e.ServedAt = &t
}

// CanCancel checks the guard for CANCELLED.
func (e *Entry) CanCancel() error {
	if !e.Status.CanTransitionTo(StatusCancelled) {
		return invalidTransition(e.Status, StatusCancelled)
	}
	return nil
}

// ApplyCancel transitions the entry to CANCELLED.
func (e *Entry) ApplyCancel(time.Time) {
	e.Status = StatusCancelled
}

// Clone returns a deep copy so stores can hand out entries without
// aliasing their internal state.
func (e *Entry) Clone() *Entry {
	out := *e
	if e.Reasons != nil {
		out.Reasons = append([]string(nil), e.Reasons...)
	}
	if e.ServedAt != nil {
		t := *e.ServedAt
		out.ServedAt = &t
	}
	return &out
}

func invalidTransition(from, to Status) error {
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("invalid transition: %s entry cannot move to %s", from, to))
}
