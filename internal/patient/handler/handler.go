// Package handler exposes the patient registry endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"esperanza/internal/patient/models"
	"esperanza/internal/patient/service"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/httputil"
	"esperanza/pkg/requestcontext"
)

// Service is the slice of the patient service the handler calls.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.Patient, error)
	Get(ctx context.Context, id domain.PatientID) (*models.Patient, error)
	Update(ctx context.Context, id domain.PatientID, in service.UpdateInput) (*models.Patient, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Patient, error)
	Authenticate(ctx context.Context, id domain.PatientID, pin string) (*models.Patient, error)
	Archive(ctx context.Context, id domain.PatientID) error
	Restore(ctx context.Context, id domain.PatientID) (*models.Patient, error)
	ListArchived(ctx context.Context, limit int) ([]*models.Patient, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the registry endpoints. Kiosk check-in (PIN verify) is
// open; everything else is front-desk staff.
func (h *Handler) Register(r chi.Router, requireStaff func(http.Handler) http.Handler) {
	r.Post("/patients/check-in", h.HandleCheckIn)
	r.Group(func(r chi.Router) {
		r.Use(requireStaff)
		r.Post("/patients", h.HandleRegister)
		r.Get("/patients", h.HandleSearch)
		r.Get("/patients/archived", h.HandleListArchived)
		r.Get("/patients/{patientID}", h.HandleGet)
		r.Patch("/patients/{patientID}", h.HandleUpdate)
		r.Post("/patients/{patientID}/archive", h.HandleArchive)
		r.Post("/patients/{patientID}/restore", h.HandleRestore)
	})
}

// HandleRegister handles POST /patients requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, ok := httputil.Decode[service.RegisterInput](w, r)
	if !ok {
		return
	}

	p, err := h.service.Register(ctx, in)
	if err != nil {
		h.logger.ErrorContext(ctx, "patient registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleGet handles GET /patients/{patientID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), domain.PatientID(chi.URLParam(r, "patientID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleUpdate handles PATCH /patients/{patientID} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, ok := httputil.Decode[service.UpdateInput](w, r)
	if !ok {
		return
	}

	p, err := h.service.Update(ctx, domain.PatientID(chi.URLParam(r, "patientID")), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleSearch handles GET /patients?q= requests.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 50)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	patients, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"patients": patients})
}

type checkInRequest struct {
	PatientID string `json:"patient_id"`
	PIN       string `json:"pin"`
}

// HandleCheckIn handles POST /patients/check-in: the kiosk verifies the
// patient's PIN before the vitals stations.
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[checkInRequest](w, r)
	if !ok {
		return
	}

	p, err := h.service.Authenticate(ctx, domain.PatientID(req.PatientID), req.PIN)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "patient checked in",
		"patient_id", p.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleArchive handles POST /patients/{patientID}/archive requests.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	id := domain.PatientID(chi.URLParam(r, "patientID"))
	if err := h.service.Archive(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// HandleRestore handles POST /patients/{patientID}/restore requests.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Restore(r.Context(), domain.PatientID(chi.URLParam(r, "patientID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleListArchived handles GET /patients/archived requests.
func (h *Handler) HandleListArchived(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 50)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	patients, err := h.service.ListArchived(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"patients": patients})
}

func limitParam(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return parsed, nil
}
