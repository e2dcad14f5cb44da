package store

import (
	"context"
	"sync"
	"time"

	"esperanza/internal/auth/models"
	"esperanza/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.Mutex
	staff map[string]*models.Staff
}

func NewInMemory() *InMemory {
	return &InMemory{staff: make(map[string]*models.Staff)}
}

func (s *InMemory) Get(_ context.Context, username string) (*models.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.staff[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return acct.Clone(), nil
}

func (s *InMemory) Create(_ context.Context, acct *models.Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.staff[acct.Username]; ok {
		return sentinel.ErrConflict
	}
	s.staff[acct.Username] = acct.Clone()
	return nil
}

func (s *InMemory) TouchLastLogin(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.staff[username]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := at
	acct.LastLogin = &t
	return nil
}
