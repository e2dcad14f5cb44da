package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authservice "esperanza/internal/auth/service"
	"esperanza/internal/platform/middleware"
	"esperanza/internal/vitals/service"
	"esperanza/internal/vitals/store"
	"esperanza/pkg/domain"
)

type stubRegistry struct{}

func (stubRegistry) Exists(_ context.Context, id domain.PatientID) (bool, error) {
	return id == "P-20250114-001", nil
}

func newRouter(t *testing.T) (chi.Router, string) {
	t.Helper()
	logger := slog.Default()
	acc := service.NewAccumulator(store.NewInMemory(), stubRegistry{}, logger, nil, time.UTC)

	tokens := authservice.NewTokenService("test-signing-key", time.Hour)
	token, err := tokens.Generate("nurse.cruz", "Ana Cruz", "nurse", time.Now())
	require.NoError(t, err)

	r := chi.NewRouter()
	New(acc, logger).Register(r, middleware.RequireStaff(tokens, logger))
	return r, token
}

func post(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleSubmit_SplitsBloodPressure(t *testing.T) {
	r, _ := newRouter(t)

	rec := post(t, r, "/vitals", map[string]any{
		"patient_id":     "P-20250114-001",
		"device_id":      "bp-station-2",
		"blood_pressure": "120/80",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Completed     bool     `json:"completed"`
		MissingFields []string `json:"missing_fields"`
		Reading       struct {
			Systolic  *int `json:"systolic"`
			Diastolic *int `json:"diastolic"`
		} `json:"reading"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Completed)
	require.NotNil(t, resp.Reading.Systolic)
	assert.Equal(t, 120, *resp.Reading.Systolic)
	assert.Equal(t, 80, *resp.Reading.Diastolic)
	assert.NotContains(t, resp.MissingFields, "blood_pressure")
}

func TestHandleSubmit_MalformedBloodPressure(t *testing.T) {
	r, _ := newRouter(t)

	rec := post(t, r, "/vitals", map[string]any{
		"patient_id":     "P-20250114-001",
		"blood_pressure": "garbage",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit_UnknownPatient(t *testing.T) {
	r, _ := newRouter(t)

	rec := post(t, r, "/vitals", map[string]any{
		"patient_id": "P-20250114-099",
		"heart_rate": 72,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHistory_RequiresStaff(t *testing.T) {
	r, token := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/patients/P-20250114-001/vitals", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/patients/P-20250114-001/vitals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleLatest_NotFoundBeforeCompletion(t *testing.T) {
	r, token := newRouter(t)

	rec := post(t, r, "/vitals", map[string]any{
		"patient_id": "P-20250114-001",
		"heart_rate": 72,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/patients/P-20250114-001/vitals/latest", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}
