package lockout

import (
	"context"
	"fmt"
	"log/slog"

	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/requestcontext"
)

// Service wraps a Store with the lock policy. A nil *Service is valid and
// never throttles, so callers do not branch on whether lockout is enabled.
type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Check returns a rate-limited error while the identifier is hard-locked
// or already over the window limit.
func (s *Service) Check(ctx context.Context, identifier string) error {
	if s == nil {
		return nil
	}
	record, err := s.store.Get(ctx, identifier)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "lockout check failed")
	}
	if record == nil {
		return nil
	}

	now := requestcontext.Now(ctx)
	if record.LockedAt(now) {
		return s.limited(record.RetryAfter(now).Seconds())
	}
	if !record.WindowExpired(now) && record.ShouldLock() {
		// Over the limit but not yet stamped; the lock lands on the next
		// failure. Refuse anyway.
		return s.limited(Window.Seconds())
	}
	return nil
}

// RecordFailure counts a failed PIN attempt and hard-locks the identifier
// once the window limit is reached.
func (s *Service) RecordFailure(ctx context.Context, identifier string) {
	if s == nil {
		return
	}
	now := requestcontext.Now(ctx)
	record, err := s.store.RecordFailure(ctx, identifier, now)
	if err != nil {
		s.logger.WarnContext(ctx, "recording pin failure failed", "error", err)
		return
	}
	if record.ShouldLock() && !record.LockedAt(now) {
		record.ApplyLock(now)
		if err := s.store.Update(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "applying pin lock failed", "error", err)
			return
		}
		s.logger.InfoContext(ctx, "pin lockout applied",
			"identifier", identifier,
			"failures", record.FailureCount,
			"locked_until", record.LockedUntil,
		)
	}
}

// Clear forgets the identifier's failures after a successful
// authentication.
func (s *Service) Clear(ctx context.Context, identifier string) {
	if s == nil {
		return
	}
	if err := s.store.Clear(ctx, identifier); err != nil {
		s.logger.WarnContext(ctx, "clearing pin failures failed", "error", err)
	}
}

func (s *Service) limited(retryAfterSeconds float64) error {
	return dErrors.New(dErrors.CodeRateLimited,
		fmt.Sprintf("too many failed attempts, retry in %d seconds", int(retryAfterSeconds)))
}
