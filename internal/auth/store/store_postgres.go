package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"esperanza/internal/auth/models"
	"esperanza/pkg/platform/sentinel"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Get(ctx context.Context, username string) (*models.Staff, error) {
	var (
		acct      models.Staff
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, full_name, role, pin_hash, created_at, last_login
		 FROM staff WHERE username = $1`, username,
	).Scan(&acct.Username, &acct.FullName, &acct.Role, &acct.PINHash, &acct.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		acct.LastLogin = &t
	}
	return &acct, nil
}

func (s *Postgres) Create(ctx context.Context, acct *models.Staff) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staff (username, full_name, role, pin_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		acct.Username, acct.FullName, acct.Role, acct.PINHash, acct.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create staff: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

func (s *Postgres) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staff SET last_login = $1 WHERE username = $2`, at, username,
	)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
