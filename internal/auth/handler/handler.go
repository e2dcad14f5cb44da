// Package handler exposes staff login.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"esperanza/internal/auth/service"
	"esperanza/pkg/platform/httputil"
	"esperanza/pkg/requestcontext"
)

type Service interface {
	Login(ctx context.Context, username, pin string) (*service.Session, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

type loginRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

type loginResponse struct {
	Token     string `json:"token"`
	StaffName string `json:"staff_name"`
	Role      string `json:"role"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// HandleLogin handles POST /auth/login requests.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[loginRequest](w, r)
	if !ok {
		return
	}

	session, err := h.service.Login(ctx, req.Username, req.PIN)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"username", req.Username,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		StaffName: session.StaffName,
		Role:      session.Role,
		ExpiresIn: int64(session.ExpiresIn.Seconds()),
	})
}
