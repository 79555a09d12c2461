package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/session"

	"go.uber.org/zap"
)

// ============================================================
// Dev tools
// ============================================================

// devHandler runs one simulation endpoint and reloads the profile, since
// each of them advances the operator's stage on the server.
func devHandler(name string, fn func(context.Context) (*domain.StatusMessage, error), store *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/"+name)
		defer span.End()

		msg, err := fn(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("dev simulation applied", zap.String("operation", name), zap.String("status", msg.Status))

		store.RefreshProfile(ctx)
		writeJSON(w, http.StatusOK, msg)
	}
}
