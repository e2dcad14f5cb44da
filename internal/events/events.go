// Package events carries queue lifecycle events to downstream consumers
// (daily reporting, the SMS notifier, ops dashboards). Publishing is
// best-effort: a failed emit is logged by the caller and never fails the
// admission or transition that produced it.
package events

import (
	"context"
	"time"

	"esperanza/internal/queue/models"
	"esperanza/pkg/domain"
)

type Type string

const (
	TypeAdmitted  Type = "queue.admitted"
	TypeServing   Type = "queue.serving"
	TypeCompleted Type = "queue.completed"
	TypeCancelled Type = "queue.cancelled"
)

// Event is the wire payload, one per entry transition.
type Event struct {
	Type      Type             `json:"type"`
	EntryID   domain.EntryID   `json:"entry_id"`
	PatientID domain.PatientID `json:"patient_id"`
	Day       domain.Day       `json:"day"`
	Lane      models.Lane      `json:"lane"`
	Number    int              `json:"queue_number"`
	Tier      string           `json:"priority"`
	At        time.Time        `json:"at"`
}

// FromEntry builds the event for a transition that just happened to e.
func FromEntry(typ Type, e *models.Entry, at time.Time) Event {
	return Event{
		Type:      typ,
		EntryID:   e.ID,
		PatientID: e.PatientID,
		Day:       e.Day,
		Lane:      e.Lane,
		Number:    e.Number,
		Tier:      string(e.Tier),
		At:        at,
	}
}

// Publisher delivers events to a stream. Emit must be safe for concurrent
// use; Close flushes anything buffered.
type Publisher interface {
	Emit(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }
