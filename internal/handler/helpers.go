package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/boddenberg/seal-console/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

type warningResponse struct {
	Warning string `json:"warning"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "Corpo da requisição inválido"}
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ErrValidation{Field: name, Message: "Identificador inválido"}
	}
	return id, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var remote *domain.ErrRemote
	var notYet *domain.ErrNotYetSatisfied
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var busy *domain.ErrBusy
	var forbidden *domain.ErrForbidden
	var incomplete *domain.ErrTrainingIncomplete
	var transition *domain.ErrInvalidTransition
	var external *domain.ErrExternalService

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		logger.Debug("unauthenticated")
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notYet):
		logger.Debug("precondition not yet satisfied", zap.String("warning", notYet.Message))
		writeJSON(w, http.StatusConflict, warningResponse{Warning: notYet.Message})
	case errors.As(err, &remote):
		status := remote.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		logger.Warn("remote rejected request", zap.Int("status", remote.Status), zap.String("error", remote.Message))
		writeError(w, status, remote.Message)
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), zap.String("error", validation.Message))
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &busy):
		logger.Debug("operation busy", zap.String("operation", busy.Operation))
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden action", zap.String("action", forbidden.Action))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &incomplete):
		logger.Debug("training incomplete", zap.Strings("pending", incomplete.Pending))
		writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.As(err, &transition):
		logger.Debug("invalid onboarding transition", zap.Int("stage", transition.Stage), zap.String("action", transition.Action))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "tempo esgotado")
	case errors.As(err, &external):
		logger.Error("remote unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
