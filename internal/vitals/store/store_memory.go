package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"esperanza/internal/vitals/models"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

type openKey struct {
	patientID domain.PatientID
	day       domain.Day
}

// InMemory is the in-memory reading store used by unit tests and
// single-kiosk development runs. A single mutex serializes merges, which
// trivially satisfies the per-(patient, day) locking contract.
type InMemory struct {
	mu       sync.Mutex
	open     map[openKey]*models.Reading
	readings map[domain.ReadingID]*models.Reading
}

func NewInMemory() *InMemory {
	return &InMemory{
		open:     make(map[openKey]*models.Reading),
		readings: make(map[domain.ReadingID]*models.Reading),
	}
}

func (s *InMemory) MergeOpen(_ context.Context, patientID domain.PatientID, day domain.Day, partial models.Partial, now time.Time) (*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := openKey{patientID: patientID, day: day}
	reading, ok := s.open[key]
	if !ok {
		reading = models.NewReading(patientID, day, now)
		s.open[key] = reading
		s.readings[reading.ID] = reading
	}

	if err := reading.Apply(partial, now); err != nil {
		return nil, err
	}
	if reading.Complete() {
		reading.Freeze(now)
		delete(s.open, key)
	}
	return reading.Clone(), nil
}

func (s *InMemory) FindOpen(_ context.Context, patientID domain.PatientID, day domain.Day) (*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reading, ok := s.open[openKey{patientID: patientID, day: day}]; ok {
		return reading.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByID(_ context.Context, id domain.ReadingID) (*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reading, ok := s.readings[id]; ok {
		return reading.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByPatient(_ context.Context, patientID domain.PatientID, limit int) ([]*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Reading
	for _, r := range s.readings {
		if r.PatientID == patientID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) LatestComplete(_ context.Context, patientID domain.PatientID) (*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.Reading
	for _, r := range s.readings {
		if r.PatientID != patientID || r.Open() {
			continue
		}
		if latest == nil || r.CompletedAt.After(*latest.CompletedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}
