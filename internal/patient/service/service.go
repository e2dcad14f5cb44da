// Package service implements the patient registry operations behind the
// kiosk and the front desk.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"esperanza/internal/auth/lockout"
	"esperanza/internal/patient/models"
	"esperanza/internal/patient/store"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/sentinel"
	"esperanza/pkg/requestcontext"
)

type Service struct {
	patients store.Store
	lockouts *lockout.Service
	logger   *slog.Logger
	loc      *time.Location
}

// New builds the patient service. lockouts may be nil to disable kiosk
// PIN throttling.
func New(patients store.Store, lockouts *lockout.Service, logger *slog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{patients: patients, lockouts: lockouts, logger: logger, loc: loc}
}

// RegisterInput carries the front-desk registration form. PIN is the
// patient's chosen 4-digit kiosk PIN.
type RegisterInput struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Birthdate time.Time `json:"birthdate"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	PIN       string    `json:"pin"`
}

func (in *RegisterInput) validate(now time.Time) error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "first and last name are required")
	}
	if in.Birthdate.IsZero() || in.Birthdate.After(now) {
		return dErrors.New(dErrors.CodeInvalidInput, "birthdate must be in the past")
	}
	return nil
}

// Register creates a patient and assigns the date-scoped ID.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Patient, error) {
	now := requestcontext.Now(ctx).In(s.loc)
	if err := in.validate(now); err != nil {
		return nil, err
	}

	p := &models.Patient{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Birthdate:    in.Birthdate,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		RegisteredAt: now,
	}
	if in.PIN != "" {
		if err := p.SetPIN(in.PIN); err != nil {
			return nil, err
		}
	}

	if err := s.patients.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "register patient")
	}

	s.logger.InfoContext(ctx, "patient registered",
		"patient_id", p.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// Get returns an active patient.
func (s *Service) Get(ctx context.Context, id domain.PatientID) (*models.Patient, error) {
	p, err := s.patients.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load patient")
	}
	return p, nil
}

// UpdateInput carries the editable fields. Nil fields are left unchanged.
type UpdateInput struct {
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Birthdate *time.Time `json:"birthdate"`
	Phone     *string    `json:"phone"`
	Address   *string    `json:"address"`
	PIN       *string    `json:"pin"`
}

// Update applies a partial edit to an active patient.
func (s *Service) Update(ctx context.Context, id domain.PatientID, in UpdateInput) (*models.Patient, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		p.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		p.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Birthdate != nil {
		p.Birthdate = *in.Birthdate
	}
	if in.Phone != nil {
		p.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.PIN != nil {
		if err := p.SetPIN(*in.PIN); err != nil {
			return nil, err
		}
	}
	if p.FirstName == "" || p.LastName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "first and last name are required")
	}

	if err := s.patients.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update patient")
	}
	return p, nil
}

// Search matches active patients by ID or name fragment.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*models.Patient, error) {
	out, err := s.patients.Search(ctx, query, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "search patients")
	}
	return out, nil
}

// Authenticate verifies a patient's kiosk PIN. Repeated failures lock
// the patient ID out of the kiosk for a cooldown period.
func (s *Service) Authenticate(ctx context.Context, id domain.PatientID, pin string) (*models.Patient, error) {
	key := "patient:" + id.String()
	if err := s.lockouts.Check(ctx, key); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.VerifyPIN(pin) {
		s.lockouts.RecordFailure(ctx, key)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid pin")
	}
	s.lockouts.Clear(ctx, key)
	return p, nil
}

// Archive moves a patient out of the active registry. Archived patients
// cannot check in until restored.
func (s *Service) Archive(ctx context.Context, id domain.PatientID) error {
	now := requestcontext.Now(ctx).In(s.loc)
	err := s.patients.Archive(ctx, id, now)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "archive patient")
	}

	s.logger.InfoContext(ctx, "patient archived",
		"patient_id", id.String(),
		"staff", requestcontext.StaffName(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Restore moves an archived patient back into the active registry.
func (s *Service) Restore(ctx context.Context, id domain.PatientID) (*models.Patient, error) {
	p, err := s.patients.Restore(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "archived patient not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "restore patient")
	}

	s.logger.InfoContext(ctx, "patient restored",
		"patient_id", id.String(),
		"staff", requestcontext.StaffName(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// ListArchived returns archived patients for the admin screen.
func (s *Service) ListArchived(ctx context.Context, limit int) ([]*models.Patient, error) {
	out, err := s.patients.ListArchived(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list archived patients")
	}
	return out, nil
}

// Exists reports whether an active patient exists; the vitals accumulator
// gates sensor partials on it.
func (s *Service) Exists(ctx context.Context, id domain.PatientID) (bool, error) {
	_, err := s.patients.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TouchLastVisit stamps the patient's last visit; admission calls it
// best-effort.
func (s *Service) TouchLastVisit(ctx context.Context, id domain.PatientID, at time.Time) error {
	return s.patients.TouchLastVisit(ctx, id, at)
}

// Age returns the patient's age as of the request time, for triage.
func (s *Service) Age(ctx context.Context, id domain.PatientID) (int, error) {
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.Age(requestcontext.Now(ctx).In(s.loc)), nil
}
