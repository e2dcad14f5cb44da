package lockout

import (
	"context"
	"sync"
	"time"
)

// InMemory is the single-instance lockout store.
type InMemory struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*Record)}
}

func (s *InMemory) Get(_ context.Context, identifier string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (s *InMemory) RecordFailure(_ context.Context, identifier string, now time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[identifier]
	if !ok || r.WindowExpired(now) {
		r = &Record{Identifier: identifier}
		s.records[identifier] = r
	}
	r.FailureCount++
	r.LastFailureAt = now
	return r.Clone(), nil
}

func (s *InMemory) Update(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Identifier] = record.Clone()
	return nil
}

func (s *InMemory) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}
