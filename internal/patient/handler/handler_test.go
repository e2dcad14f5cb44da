package handler

import (
	"bytes"
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
	"esperanza/internal/patient/service"
	"esperanza/internal/patient/store"
	"esperanza/internal/platform/middleware"
)

func newRouter(t *testing.T) (chi.Router, string) {
	t.Helper()
	logger := slog.Default()
	svc := service.New(store.NewInMemory(), nil, logger, time.UTC)

	tokens := authservice.NewTokenService("test-signing-key", time.Hour)
	token, err := tokens.Generate("desk.reyes", "Luis Reyes", "frontdesk", time.Now())
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, logger).Register(r, middleware.RequireStaff(tokens, logger))
	return r, token
}

func do(t *testing.T, r chi.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func registerBody() map[string]any {
	return map[string]any{
		"first_name": "Maria",
		"last_name":  "Santos",
		"birthdate":  "1958-06-02T00:00:00Z",
		"pin":        "4321",
	}
}

func TestRegisterGetSearch(t *testing.T) {
	r, token := newRouter(t)

	rec := do(t, r, http.MethodPost, "/patients", token, registerBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Regexp(t, `^P-\d{8}-\d{3}$`, created.ID)

	rec = do(t, r, http.MethodGet, "/patients/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/patients?q=santos", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var search struct {
		Patients []struct {
			ID string `json:"id"`
		} `json:"patients"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&search))
	require.Len(t, search.Patients, 1)
	assert.Equal(t, created.ID, search.Patients[0].ID)
}

func TestRegister_RequiresStaff(t *testing.T) {
	r, _ := newRouter(t)

	rec := do(t, r, http.MethodPost, "/patients", "", registerBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckIn(t *testing.T) {
	r, token := newRouter(t)

	rec := do(t, r, http.MethodPost, "/patients", token, registerBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	// Check-in is open to the kiosk; no staff token.
	rec = do(t, r, http.MethodPost, "/patients/check-in", "",
		map[string]string{"patient_id": created.ID, "pin": "4321"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/patients/check-in", "",
		map[string]string{"patient_id": created.ID, "pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestArchiveRestoreFlow(t *testing.T) {
	r, token := newRouter(t)

	rec := do(t, r, http.MethodPost, "/patients", token, registerBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = do(t, r, http.MethodPost, "/patients/"+created.ID+"/archive", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/patients/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodGet, "/patients/archived", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var archived struct {
		Patients []struct {
			ID string `json:"id"`
		} `json:"patients"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&archived))
	require.Len(t, archived.Patients, 1)

	rec = do(t, r, http.MethodPost, "/patients/"+created.ID+"/restore", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/patients/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdate_InvalidPIN(t *testing.T) {
	r, token := newRouter(t)

	rec := do(t, r, http.MethodPost, "/patients", token, registerBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = do(t, r, http.MethodPatch, "/patients/"+created.ID, token,
		map[string]string{"pin": "12"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
