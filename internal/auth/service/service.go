// Package service implements staff login for the front-desk endpoints:
// username plus PIN in, short-lived session token out.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"esperanza/internal/auth/lockout"
	"esperanza/internal/auth/models"
	"esperanza/internal/auth/store"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/sentinel"
	"esperanza/pkg/requestcontext"
)

type Service struct {
	staff    store.Store
	tokens   *TokenService
	lockouts *lockout.Service
	logger   *slog.Logger
}

// New builds the auth service. lockouts may be nil to disable PIN
// throttling.
func New(staff store.Store, tokens *TokenService, lockouts *lockout.Service, logger *slog.Logger) *Service {
	return &Service{staff: staff, tokens: tokens, lockouts: lockouts, logger: logger}
}

// Session is a successful login result.
type Session struct {
	Token     string        `json:"token"`
	StaffName string        `json:"staff_name"`
	Role      string        `json:"role"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// Login verifies a staff PIN and issues a session token. Unknown usernames
// and wrong PINs return the same error so the endpoint does not leak which
// usernames exist.
func (s *Service) Login(ctx context.Context, username, pin string) (*Session, error) {
	if username == "" || pin == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "username and pin are required")
	}

	if err := s.lockouts.Check(ctx, "staff:"+username); err != nil {
		return nil, err
	}

	acct, err := s.staff.Get(ctx, username)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.lockouts.RecordFailure(ctx, "staff:"+username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load staff account")
	}
	if !acct.VerifyPIN(pin) {
		s.lockouts.RecordFailure(ctx, "staff:"+username)
		s.logger.WarnContext(ctx, "staff login rejected",
			"username", username,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	s.lockouts.Clear(ctx, "staff:"+username)

	now := requestcontext.Now(ctx)
	token, err := s.tokens.Generate(acct.Username, acct.FullName, acct.Role, now)
	if err != nil {
		return nil, err
	}

	if err := s.staff.TouchLastLogin(ctx, acct.Username, now); err != nil {
		s.logger.WarnContext(ctx, "touch last login failed", "username", username, "error", err)
	}

	s.logger.InfoContext(ctx, "staff logged in",
		"username", acct.Username,
		"role", acct.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Session{
		Token:     token,
		StaffName: acct.FullName,
		Role:      acct.Role,
		ExpiresIn: s.tokens.ttl,
	}, nil
}

// Register creates a staff account; used by seeding and the admin CLI.
func (s *Service) Register(ctx context.Context, username, fullName, role, pin string) (*models.Staff, error) {
	if username == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "username is required")
	}
	acct := &models.Staff{
		Username:  username,
		FullName:  fullName,
		Role:      role,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := acct.SetPIN(pin); err != nil {
		return nil, err
	}
	if err := s.staff.Create(ctx, acct); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create staff account")
	}
	return acct, nil
}

// Tokens exposes the token service for middleware wiring.
func (s *Service) Tokens() *TokenService { return s.tokens }
