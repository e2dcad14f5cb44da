package store

import (
	"context"
	"sort"
	"sync"

	"esperanza/internal/queue/models"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

// InMemory is the in-process Store used by unit tests and local
// development. One mutex serializes everything, which trivially satisfies
// the per-(day, lane) allocation contract.
type InMemory struct {
	mu      sync.Mutex
	entries map[domain.EntryID]*models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[domain.EntryID]*models.Entry)}
}

func (s *InMemory) Insert(ctx context.Context, e *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxIssued := 0
	for _, cur := range s.entries {
		if cur.PatientID == e.PatientID && cur.Day == e.Day && cur.Status.Active() {
			return sentinel.ErrConflict
		}
		if cur.Day == e.Day && cur.Lane == e.Lane && cur.Number > maxIssued {
			maxIssued = cur.Number
		}
	}

	e.Number = nextNumber(maxIssued, e.Lane)
	for _, cur := range s.entries {
		if cur.Day == e.Day && cur.Lane == e.Lane && cur.Number == e.Number {
			// Post-wrap collision with a still-live number.
			return sentinel.ErrConflict
		}
	}

	s.entries[e.ID] = e.Clone()
	return nil
}

func (s *InMemory) FindActive(ctx context.Context, patientID domain.PatientID, day domain.Day) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.entries {
		if cur.PatientID == patientID && cur.Day == day && cur.Status.Active() {
			return cur.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByID(ctx context.Context, id domain.EntryID) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *InMemory) Execute(ctx context.Context, id domain.EntryID, validate func(*models.Entry) error, apply func(*models.Entry)) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	apply(e)
	return e.Clone(), nil
}

func (s *InMemory) ListActive(ctx context.Context, day domain.Day) ([]*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Entry
	for _, cur := range s.entries {
		if cur.Day == day && cur.Status.Active() {
			out = append(out, cur.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier.Rank() != out[j].Tier.Rank() {
			return out[i].Tier.Rank() < out[j].Tier.Rank()
		}
		return out[i].EnteredAt.Before(out[j].EnteredAt)
	})
	return out, nil
}

func (s *InMemory) ListByDay(ctx context.Context, day domain.Day) ([]*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Entry
	for _, cur := range s.entries {
		if cur.Day == day {
			out = append(out, cur.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EnteredAt.Before(out[j].EnteredAt)
	})
	return out, nil
}
