// Package display serves the waiting-room screens. The queue service
// publishes a snapshot of the day's queue after every mutation; screens
// poll the read side. The snapshot is denormalized so screens never need a
// second lookup.
package display

import (
	"context"
	"time"

	"esperanza/internal/queue/models"
	"esperanza/pkg/domain"
)

// EntryView is one line on the board.
type EntryView struct {
	Number    string           `json:"number"`
	Lane      models.Lane      `json:"lane"`
	Priority  string           `json:"priority"`
	PatientID domain.PatientID `json:"patient_id"`
	EnteredAt time.Time        `json:"entered_at"`
}

// Snapshot is the full board state for one day.
type Snapshot struct {
	Day         domain.Day  `json:"day"`
	GeneratedAt time.Time   `json:"generated_at"`
	NowServing  []EntryView `json:"now_serving"`
	Waiting     []EntryView `json:"waiting"`
}

// Build renders the board from the day's active entries, which must
// already be in display order (tier rank, then arrival).
func Build(day domain.Day, active []*models.Entry, now time.Time) *Snapshot {
	snap := &Snapshot{Day: day, GeneratedAt: now, NowServing: []EntryView{}, Waiting: []EntryView{}}
	for _, e := range active {
		view := EntryView{
			Number:    e.DisplayNumber(),
			Lane:      e.Lane,
			Priority:  string(e.Tier),
			PatientID: e.PatientID,
			EnteredAt: e.EnteredAt,
		}
		if e.Status == models.StatusServing {
			snap.NowServing = append(snap.NowServing, view)
		} else {
			snap.Waiting = append(snap.Waiting, view)
		}
	}
	return snap
}

// Board stores the published snapshot per day. Current returns
// sentinel.ErrNotFound when nothing has been published for the day yet.
type Board interface {
	Publish(ctx context.Context, snap *Snapshot) error
	Current(ctx context.Context, day domain.Day) (*Snapshot, error)
}
