// Package handler exposes the sensor ingress and vitals review endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"esperanza/internal/vitals/models"
	"esperanza/internal/vitals/service"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/httputil"
	"esperanza/pkg/requestcontext"
)

// Service is the slice of the accumulator the handler calls.
type Service interface {
	Submit(ctx context.Context, patientID domain.PatientID, partial models.Partial) (*service.Result, error)
	History(ctx context.Context, patientID domain.PatientID, limit int) ([]*models.Reading, error)
	Latest(ctx context.Context, patientID domain.PatientID) (*models.Reading, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the vitals endpoints. Sensor ingress is unauthenticated
// (devices sit on the clinic LAN); history review requires staff.
func (h *Handler) Register(r chi.Router, requireStaff func(http.Handler) http.Handler) {
	r.Post("/vitals", h.HandleSubmit)
	r.Group(func(r chi.Router) {
		r.Use(requireStaff)
		r.Get("/patients/{patientID}/vitals", h.HandleHistory)
		r.Get("/patients/{patientID}/vitals/latest", h.HandleLatest)
	})
}

// submitRequest is one partial sensor payload. blood_pressure arrives as
// the device's "SYS/DIA" string and is split server-side.
type submitRequest struct {
	PatientID     string   `json:"patient_id"`
	DeviceID      string   `json:"device_id"`
	HeartRate     *int     `json:"heart_rate"`
	Temperature   *float64 `json:"temperature"`
	SpO2          *float64 `json:"oxygen_saturation"`
	BloodPressure *string  `json:"blood_pressure"`
	HeightCM      *float64 `json:"height"`
	WeightKG      *float64 `json:"weight"`
}

type submitResponse struct {
	Reading       *models.Reading `json:"reading"`
	Completed     bool            `json:"completed"`
	MissingFields []string        `json:"missing_fields"`
}

// HandleSubmit handles POST /vitals requests from station devices.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[submitRequest](w, r)
	if !ok {
		return
	}

	partial := models.Partial{
		DeviceID:    req.DeviceID,
		HeartRate:   req.HeartRate,
		Temperature: req.Temperature,
		SpO2:        req.SpO2,
		HeightCM:    req.HeightCM,
		WeightKG:    req.WeightKG,
	}
	if req.BloodPressure != nil {
		sys, dia, err := models.ParseBloodPressure(*req.BloodPressure)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		partial.Systolic = &sys
		partial.Diastolic = &dia
	}

	result, err := h.service.Submit(ctx, domain.PatientID(req.PatientID), partial)
	if err != nil {
		h.logger.ErrorContext(ctx, "vitals submit failed",
			"request_id", requestcontext.RequestID(ctx),
			"patient_id", req.PatientID,
			"device_id", req.DeviceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, submitResponse{
		Reading:       result.Reading,
		Completed:     result.Completed,
		MissingFields: result.MissingFields,
	})
}

// HandleHistory handles GET /patients/{patientID}/vitals requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := domain.PatientID(chi.URLParam(r, "patientID"))

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	readings, err := h.service.History(ctx, patientID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

// HandleLatest handles GET /patients/{patientID}/vitals/latest requests.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := domain.PatientID(chi.URLParam(r, "patientID"))

	reading, err := h.service.Latest(ctx, patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if reading == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no completed reading"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reading)
}
