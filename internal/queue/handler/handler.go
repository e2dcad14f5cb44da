// Package handler exposes the queue admission and lifecycle endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"esperanza/internal/display"
	"esperanza/internal/queue/models"
	"esperanza/internal/queue/service"
	"esperanza/internal/triage"
	vitalsmodels "esperanza/internal/vitals/models"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/httputil"
	"esperanza/pkg/requestcontext"
)

// Service is the slice of the queue service the handler calls.
type Service interface {
	Admit(ctx context.Context, patientID domain.PatientID, reading *vitalsmodels.Reading) (*service.AdmitOutcome, error)
	AdmitDirect(ctx context.Context, patientID domain.PatientID, tier triage.Tier) (*service.AdmitOutcome, error)
	MarkServing(ctx context.Context, id domain.EntryID) (*models.Entry, error)
	MarkCompleted(ctx context.Context, id domain.EntryID) (*models.Entry, error)
	Cancel(ctx context.Context, id domain.EntryID) (*models.Entry, error)
	CurrentQueue(ctx context.Context, day domain.Day) ([]*models.Entry, error)
	Entry(ctx context.Context, id domain.EntryID) (*models.Entry, error)
	CurrentDisplay(ctx context.Context, day domain.Day) (*display.Snapshot, error)
}

// VitalsSource supplies the completed reading admission classifies.
type VitalsSource interface {
	Latest(ctx context.Context, patientID domain.PatientID) (*vitalsmodels.Reading, error)
}

type Handler struct {
	service Service
	vitals  VitalsSource
	logger  *slog.Logger
}

func New(service Service, vitals VitalsSource, logger *slog.Logger) *Handler {
	return &Handler{service: service, vitals: vitals, logger: logger}
}

// Register mounts the queue endpoints. Kiosk check-in and the waiting-room
// display are open; lifecycle transitions are staff-only.
func (h *Handler) Register(r chi.Router, requireStaff func(http.Handler) http.Handler) {
	r.Post("/queue/admit", h.HandleAdmit)
	r.Get("/queue", h.HandleCurrent)
	r.Get("/queue/{entryID}/ticket", h.HandleTicket)
	r.Get("/display", h.HandleDisplay)
	r.Group(func(r chi.Router) {
		r.Use(requireStaff)
		r.Post("/queue/admit-direct", h.HandleAdmitDirect)
		r.Post("/queue/{entryID}/serve", h.transitionHandler(h.service.MarkServing))
		r.Post("/queue/{entryID}/complete", h.transitionHandler(h.service.MarkCompleted))
		r.Post("/queue/{entryID}/cancel", h.transitionHandler(h.service.Cancel))
	})
}

type admitRequest struct {
	PatientID string `json:"patient_id"`
}

type admitDirectRequest struct {
	PatientID string `json:"patient_id"`
	Priority  string `json:"priority"`
}

type admitResponse struct {
	Entry           *entryResponse `json:"entry"`
	AlreadyAdmitted bool           `json:"already_admitted"`
}

// entryResponse is the wire shape of a queue entry; the number goes out
// zero-padded.
type entryResponse struct {
	ID          domain.EntryID   `json:"id"`
	PatientID   domain.PatientID `json:"patient_id"`
	Day         domain.Day       `json:"day"`
	Priority    triage.Tier      `json:"priority"`
	Lane        models.Lane      `json:"lane"`
	QueueNumber string           `json:"queue_number"`
	Reasons     []string         `json:"reasons,omitempty"`
	Status      models.Status    `json:"status"`
	EnteredAt   time.Time        `json:"entered_at"`
	ServedAt    *time.Time       `json:"served_at,omitempty"`
}

func fromEntry(e *models.Entry) *entryResponse {
	return &entryResponse{
		ID:          e.ID,
		PatientID:   e.PatientID,
		Day:         e.Day,
		Priority:    e.Tier,
		Lane:        e.Lane,
		QueueNumber: e.DisplayNumber(),
		Reasons:     e.Reasons,
		Status:      e.Status,
		EnteredAt:   e.EnteredAt,
		ServedAt:    e.ServedAt,
	}
}

// HandleAdmit handles POST /queue/admit: kiosk check-in after the vitals
// stations. Classifies the patient's latest completed reading and issues a
// queue number.
func (h *Handler) HandleAdmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[admitRequest](w, r)
	if !ok {
		return
	}
	patientID := domain.PatientID(req.PatientID)

	reading, err := h.vitals.Latest(ctx, patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if reading == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvariantViolation, "no completed vitals reading"))
		return
	}

	outcome, err := h.service.Admit(ctx, patientID, reading)
	if err != nil {
		h.logger.ErrorContext(ctx, "admission failed",
			"request_id", requestcontext.RequestID(ctx),
			"patient_id", req.PatientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.AlreadyAdmitted {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, admitResponse{
		Entry:           fromEntry(outcome.Entry),
		AlreadyAdmitted: outcome.AlreadyAdmitted,
	})
}

// HandleAdmitDirect handles POST /queue/admit-direct: staff admission
// without vitals, e.g. follow-up visits.
func (h *Handler) HandleAdmitDirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[admitDirectRequest](w, r)
	if !ok {
		return
	}

	tier, err := triage.ParseTier(req.Priority)
	if req.Priority != "" && err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.service.AdmitDirect(ctx, domain.PatientID(req.PatientID), tier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.AlreadyAdmitted {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, admitResponse{
		Entry:           fromEntry(outcome.Entry),
		AlreadyAdmitted: outcome.AlreadyAdmitted,
	})
}

func (h *Handler) transitionHandler(op func(context.Context, domain.EntryID) (*models.Entry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := domain.ParseEntryID(chi.URLParam(r, "entryID"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entry id"))
			return
		}

		entry, err := op(ctx, id)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, fromEntry(entry))
	}
}

// HandleCurrent handles GET /queue requests: the day's active entries in
// calling order. An optional day query serves staff reviewing past days.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day := domain.Day(r.URL.Query().Get("day"))
	if day != "" && !day.Valid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "day must look like 2025-01-14"))
		return
	}

	entries, err := h.service.CurrentQueue(ctx, day)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]*entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, fromEntry(e))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// ticketResponse is the receipt payload for the external printer.
type ticketResponse struct {
	QueueNumber string           `json:"queue_number"`
	Lane        models.Lane      `json:"lane"`
	Priority    triage.Tier      `json:"priority"`
	Reasons     []string         `json:"reasons"`
	EnteredAt   time.Time        `json:"entered_at"`
	PatientID   domain.PatientID `json:"patient_id"`
	Vitals      *ticketVitals    `json:"vitals,omitempty"`
}

type ticketVitals struct {
	HeartRate   *int     `json:"heart_rate"`
	Temperature *float64 `json:"temperature"`
	SpO2        *float64 `json:"oxygen_saturation"`
	Systolic    *int     `json:"systolic"`
	Diastolic   *int     `json:"diastolic"`
	BMI         *float64 `json:"bmi"`
}

// HandleTicket handles GET /queue/{entryID}/ticket requests.
func (h *Handler) HandleTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entry id"))
		return
	}

	entry, err := h.service.Entry(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ticket := ticketResponse{
		QueueNumber: entry.DisplayNumber(),
		Lane:        entry.Lane,
		Priority:    entry.Tier,
		Reasons:     entry.Reasons,
		EnteredAt:   entry.EnteredAt,
		PatientID:   entry.PatientID,
	}
	if reading, err := h.vitals.Latest(ctx, entry.PatientID); err == nil && reading != nil {
		ticket.Vitals = &ticketVitals{
			HeartRate:   reading.HeartRate,
			Temperature: reading.Temperature,
			SpO2:        reading.SpO2,
			Systolic:    reading.Systolic,
			Diastolic:   reading.Diastolic,
			BMI:         reading.BMI,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, ticket)
}

// HandleDisplay handles GET /display requests from waiting-room screens.
func (h *Handler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day := domain.Day(r.URL.Query().Get("day"))
	if day != "" && !day.Valid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "day must look like 2025-01-14"))
		return
	}

	snap, err := h.service.CurrentDisplay(ctx, day)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}
