package store

import (
	"context"
	"time"

	"esperanza/internal/auth/models"
)

// Store persists staff accounts.
type Store interface {
	// Get returns a staff account by username, or sentinel.ErrNotFound.
	Get(ctx context.Context, username string) (*models.Staff, error)

	// Create inserts a new account; sentinel.ErrConflict on a duplicate
	// username.
	Create(ctx context.Context, s *models.Staff) error

	// TouchLastLogin stamps the account's last successful login.
	TouchLastLogin(ctx context.Context, username string, at time.Time) error
}
