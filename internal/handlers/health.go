package handlers

import (
	"context"
	"net/http"

	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/models"
)

//go:generate mockgen -source=health.go -destination=health_mock.go -package=handlers

// Pinger checks that the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler reports whether the service can reach its database.
// @Summary Health check
// @Tags utils
// @Produce json
// @Success 200 {object} models.Message
// @Failure 503 {object} models.ErrorResponse
// @Router /healthz [get]
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.FromContext(r.Context()).Errorw("health check failed", "err", err)
			writeDetail(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, models.Message{Message: "ok"})
	}
}
