package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"esperanza/internal/patient/models"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

// InMemory is the in-process registry used by unit tests and local
// development.
type InMemory struct {
	mu       sync.Mutex
	active   map[domain.PatientID]*models.Patient
	archived map[domain.PatientID]*models.Patient
	ordinals map[domain.Day]int
}

func NewInMemory() *InMemory {
	return &InMemory{
		active:   make(map[domain.PatientID]*models.Patient),
		archived: make(map[domain.PatientID]*models.Patient),
		ordinals: make(map[domain.Day]int),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := domain.DayOf(p.RegisteredAt)
	s.ordinals[day]++
	p.ID = domain.NewPatientID(day, s.ordinals[day])
	s.active[p.ID] = p.Clone()
	return nil
}

func (s *InMemory) Get(_ context.Context, id domain.PatientID) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.active[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) Update(_ context.Context, p *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.active[p.ID] = p.Clone()
	return nil
}

func (s *InMemory) Search(_ context.Context, query string, limit int) ([]*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []*models.Patient
	for _, p := range s.active {
		if q == "" ||
			strings.Contains(strings.ToLower(string(p.ID)), q) ||
			strings.Contains(strings.ToLower(p.FullName()), q) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) TouchLastVisit(_ context.Context, id domain.PatientID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.active[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := at
	p.LastVisit = &t
	return nil
}

func (s *InMemory) Archive(_ context.Context, id domain.PatientID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.active[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := at
	p.ArchivedAt = &t
	s.archived[id] = p
	delete(s.active, id)
	return nil
}

func (s *InMemory) Restore(_ context.Context, id domain.PatientID) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.archived[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p.ArchivedAt = nil
	s.active[id] = p
	delete(s.archived, id)
	return p.Clone(), nil
}

func (s *InMemory) ListArchived(_ context.Context, limit int) ([]*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Patient
	for _, p := range s.archived {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ArchivedAt.After(*out[j].ArchivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
