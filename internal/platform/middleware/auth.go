package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"esperanza/pkg/requestcontext"
)

// TokenValidator validates a staff session token and returns the staff
// member's display name.
type TokenValidator interface {
	ValidateToken(tokenString string) (staffName string, err error)
}

// RequireStaff guards staff-only endpoints (serving/completing queue
// entries, archiving patients). Kiosk self-service endpoints stay open.
func RequireStaff(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "staff endpoint called without token",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			staffName, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "invalid staff token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			ctx = requestcontext.WithStaffName(ctx, staffName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
