// Package service implements the vitals accumulator: the component that
// assembles complete readings from a stream of partial sensor updates.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"esperanza/internal/platform/metrics"
	"esperanza/internal/vitals/models"
	"esperanza/internal/vitals/store"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/sentinel"
	"esperanza/pkg/requestcontext"
)

// mergeMaxRetries bounds retries when two workers race to create the same
// open reading. One retry is normally enough: after the first conflict the
// winner's row exists and the merge locks it.
const mergeMaxRetries = 3

// PatientRegistry is the slice of the patient registry the accumulator
// needs: rejecting partials for unknown patients before creating readings.
type PatientRegistry interface {
	Exists(ctx context.Context, id domain.PatientID) (bool, error)
}

// Result is the outcome of one partial submission.
type Result struct {
	Reading       *models.Reading
	Completed     bool
	MissingFields []string
}

// Accumulator merges partial sensor readings into one open reading per
// patient per day and declares completeness. It has no side effects beyond
// the reading store; queue admission on completion is the admission
// controller's job, invoked by the caller.
type Accumulator struct {
	readings store.Store
	patients PatientRegistry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	loc      *time.Location
}

func NewAccumulator(readings store.Store, patients PatientRegistry, logger *slog.Logger, m *metrics.Metrics, loc *time.Location) *Accumulator {
	if loc == nil {
		loc = time.UTC
	}
	return &Accumulator{
		readings: readings,
		patients: patients,
		logger:   logger,
		metrics:  m,
		loc:      loc,
	}
}

// Submit applies one partial sensor update for a patient. Sensor partials
// arrive asynchronously, out of order, and at-least-once; re-applying the
// same field value is a no-op, so replays are harmless.
func (a *Accumulator) Submit(ctx context.Context, patientID domain.PatientID, partial models.Partial) (*Result, error) {
	if patientID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "patient_id is required")
	}
	if partial.Empty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "partial update carries no measurements")
	}

	exists, err := a.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "patient lookup failed")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
	}

	now := requestcontext.Now(ctx).In(a.loc)
	day := domain.DayOf(now)

	a.metrics.RecordPartial()

	var reading *models.Reading
	for attempt := 0; ; attempt++ {
		reading, err = a.readings.MergeOpen(ctx, patientID, day, partial, now)
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < mergeMaxRetries {
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not record vitals")
	}

	completed := !reading.Open()
	if completed {
		a.metrics.RecordReadingCompleted()
		a.logger.InfoContext(ctx, "vitals reading completed",
			"patient_id", patientID,
			"day", day,
			"reading_id", reading.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	return &Result{
		Reading:       reading,
		Completed:     completed,
		MissingFields: reading.MissingFields(),
	}, nil
}

// History returns a patient's readings for staff review, most recent first.
func (a *Accumulator) History(ctx context.Context, patientID domain.PatientID, limit int) ([]*models.Reading, error) {
	exists, err := a.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "patient lookup failed")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
	}
	readings, err := a.readings.ListByPatient(ctx, patientID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list readings")
	}
	return readings, nil
}

// Latest returns the patient's most recent completed reading, or nil when
// none exists yet.
func (a *Accumulator) Latest(ctx context.Context, patientID domain.PatientID) (*models.Reading, error) {
	reading, err := a.readings.LatestComplete(ctx, patientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load latest reading")
	}
	return reading, nil
}
