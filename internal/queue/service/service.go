// Package service implements queue admission and the entry lifecycle.
//
// Admission is the pipeline at the heart of the kiosk: classify the
// completed vitals reading, route it to a lane, allocate the next queue
// number, and persist the entry, atomically. Everything downstream of the
// insert (display refresh, event emit, last-visit touch) is best-effort
// and never fails the admission.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"esperanza/internal/display"
	"esperanza/internal/events"
	"esperanza/internal/platform/metrics"
	"esperanza/internal/queue/models"
	"esperanza/internal/queue/store"
	"esperanza/internal/triage"
	vitalsmodels "esperanza/internal/vitals/models"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/sentinel"
	"esperanza/pkg/requestcontext"
)

const defaultMaxRetries = 3

// PatientInfo is the registry snapshot admission needs.
type PatientInfo struct {
	ID  domain.PatientID
	Age int
}

// PatientRegistry is the slice of the patient domain the queue depends on.
type PatientRegistry interface {
	// Info returns sentinel.ErrNotFound for unknown or archived patients.
	Info(ctx context.Context, id domain.PatientID) (*PatientInfo, error)
	TouchLastVisit(ctx context.Context, id domain.PatientID, at time.Time) error
}

// Service coordinates admission, the entry state machine, and the display
// board.
type Service struct {
	entries    store.Store
	patients   PatientRegistry
	board      display.Board
	publisher  events.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	loc        *time.Location
	maxRetries int
}

func New(entries store.Store, patients PatientRegistry, board display.Board, publisher events.Publisher, logger *slog.Logger, m *metrics.Metrics, loc *time.Location, maxRetries int) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Service{
		entries:    entries,
		patients:   patients,
		board:      board,
		publisher:  publisher,
		logger:     logger,
		metrics:    m,
		loc:        loc,
		maxRetries: maxRetries,
	}
}

// AdmitOutcome is the result of an admission request. AlreadyAdmitted
// marks the idempotent path: the entry is the patient's existing active
// one and nothing new was allocated.
type AdmitOutcome struct {
	Entry           *models.Entry
	AlreadyAdmitted bool
}

// Admit classifies the completed reading and admits the patient into
// today's queue. Re-admitting a patient with an active entry returns that
// entry unchanged.
func (s *Service) Admit(ctx context.Context, patientID domain.PatientID, reading *vitalsmodels.Reading) (*AdmitOutcome, error) {
	if !patientID.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid patient id")
	}
	if reading == nil || reading.Open() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "admission requires a completed vitals reading")
	}

	info, err := s.patients.Info(ctx, patientID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up patient")
	}

	vitals, err := reading.TriageVitals()
	if err != nil {
		return nil, err
	}
	demo := triage.Demographics{Age: info.Age}
	tier := triage.Classify(vitals, demo)
	reasons := triage.Reasons(vitals, demo)

	now := requestcontext.Now(ctx).In(s.loc)
	return s.admit(ctx, patientID, domain.DayOf(now), tier, reasons, now)
}

// AdmitDirect admits a patient without a vitals reading, for staff
// overrides at the front desk. An empty tier defaults to NORMAL.
func (s *Service) AdmitDirect(ctx context.Context, patientID domain.PatientID, tier triage.Tier) (*AdmitOutcome, error) {
	if !patientID.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid patient id")
	}
	if tier == "" {
		tier = triage.TierNormal
	}
	if !tier.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown priority tier")
	}

	if _, err := s.patients.Info(ctx, patientID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up patient")
	}

	now := requestcontext.Now(ctx).In(s.loc)
	return s.admit(ctx, patientID, domain.DayOf(now), tier, []string{"Staff admission"}, now)
}

func (s *Service) admit(ctx context.Context, patientID domain.PatientID, day domain.Day, tier triage.Tier, reasons []string, now time.Time) (*AdmitOutcome, error) {
	if existing, err := s.entries.FindActive(ctx, patientID, day); err == nil {
		s.metrics.RecordAdmissionRejected()
		return &AdmitOutcome{Entry: existing, AlreadyAdmitted: true}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check active admission")
	}

	var entry *models.Entry
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		candidate := models.NewEntry(patientID, day, tier, reasons, now)
		err := s.entries.Insert(ctx, candidate)
		if err == nil {
			entry = candidate
			break
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist admission")
		}
		// Conflict is either a lost allocation race or a concurrent
		// admission of the same patient. Re-check before retrying so the
		// duplicate case stays idempotent.
		if existing, ferr := s.entries.FindActive(ctx, patientID, day); ferr == nil {
			s.metrics.RecordAdmissionRejected()
			return &AdmitOutcome{Entry: existing, AlreadyAdmitted: true}, nil
		}
		s.metrics.RecordAllocationRetry()
	}
	if entry == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "admission failed")
	}

	s.metrics.RecordAdmission(string(entry.Tier), string(entry.Lane))
	s.logger.InfoContext(ctx, "patient admitted",
		"patient_id", patientID.String(),
		"entry_id", entry.ID.String(),
		"day", string(day),
		"priority", string(entry.Tier),
		"lane", string(entry.Lane),
		"queue_number", entry.DisplayNumber(),
		"request_id", requestcontext.RequestID(ctx),
	)

	if err := s.patients.TouchLastVisit(ctx, patientID, now); err != nil {
		s.logger.WarnContext(ctx, "touch last visit failed",
			"patient_id", patientID.String(), "error", err)
	}
	s.emit(ctx, events.TypeAdmitted, entry, now)
	s.refreshBoard(ctx, day, now)

	return &AdmitOutcome{Entry: entry}, nil
}

// MarkServing moves a WAITING entry to SERVING.
func (s *Service) MarkServing(ctx context.Context, id domain.EntryID) (*models.Entry, error) {
	return s.transition(ctx, id, events.TypeServing,
		(*models.Entry).CanServe, (*models.Entry).ApplyServe)
}

// MarkCompleted moves an entry to COMPLETED and stamps served_at.
func (s *Service) MarkCompleted(ctx context.Context, id domain.EntryID) (*models.Entry, error) {
	return s.transition(ctx, id, events.TypeCompleted,
		(*models.Entry).CanComplete, (*models.Entry).ApplyComplete)
}

// Cancel moves a WAITING or SERVING entry to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id domain.EntryID) (*models.Entry, error) {
	return s.transition(ctx, id, events.TypeCancelled,
		(*models.Entry).CanCancel, (*models.Entry).ApplyCancel)
}

func (s *Service) transition(ctx context.Context, id domain.EntryID, typ events.Type, validate func(*models.Entry) error, apply func(*models.Entry, time.Time)) (*models.Entry, error) {
	now := requestcontext.Now(ctx).In(s.loc)
	entry, err := s.entries.Execute(ctx, id, validate, func(e *models.Entry) { apply(e, now) })
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "queue entry not found")
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(entry.Status))
	s.logger.InfoContext(ctx, "queue entry transitioned",
		"entry_id", entry.ID.String(),
		"patient_id", entry.PatientID.String(),
		"status", string(entry.Status),
		"staff", requestcontext.StaffName(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, typ, entry, now)
	s.refreshBoard(ctx, entry.Day, now)
	return entry, nil
}

// CurrentQueue returns the day's active entries in calling order: tier
// rank first, arrival time second.
func (s *Service) CurrentQueue(ctx context.Context, day domain.Day) ([]*models.Entry, error) {
	if day == "" {
		day = domain.DayOf(requestcontext.Now(ctx).In(s.loc))
	}
	entries, err := s.entries.ListActive(ctx, day)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list queue")
	}
	return entries, nil
}

// Entry returns a single entry by ID, any status.
func (s *Service) Entry(ctx context.Context, id domain.EntryID) (*models.Entry, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "queue entry not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load queue entry")
	}
	return entry, nil
}

// CurrentDisplay returns the published board snapshot for the day,
// rebuilding it from the store when nothing has been published yet.
func (s *Service) CurrentDisplay(ctx context.Context, day domain.Day) (*display.Snapshot, error) {
	now := requestcontext.Now(ctx).In(s.loc)
	if day == "" {
		day = domain.DayOf(now)
	}
	if s.board != nil {
		snap, err := s.board.Current(ctx, day)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "display board read failed", "error", err)
		}
	}
	active, err := s.entries.ListActive(ctx, day)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build display snapshot")
	}
	return display.Build(day, active, now), nil
}

func (s *Service) refreshBoard(ctx context.Context, day domain.Day, now time.Time) {
	if s.board == nil {
		return
	}
	active, err := s.entries.ListActive(ctx, day)
	if err != nil {
		s.logger.WarnContext(ctx, "display refresh failed", "day", string(day), "error", err)
		return
	}
	if err := s.board.Publish(ctx, display.Build(day, active, now)); err != nil {
		s.logger.WarnContext(ctx, "display publish failed", "day", string(day), "error", err)
	}
}

func (s *Service) emit(ctx context.Context, typ events.Type, e *models.Entry, at time.Time) {
	if err := s.publisher.Emit(ctx, events.FromEntry(typ, e, at)); err != nil {
		s.logger.WarnContext(ctx, "event emit failed",
			"type", string(typ), "entry_id", e.ID.String(), "error", err)
	}
}
