package handler

import (
	"net/http"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/onboarding"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Onboarding: Stage 0 briefing
// ============================================================

func briefingDraftHandler(m *onboarding.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"screen": m.Screen(),
			"draft":  m.Draft(),
		})
	}
}

func submitBriefingHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/briefing")
		defer span.End()

		var form domain.BriefingForm
		if err := decodeJSON(r, &form); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := m.SubmitBriefing(ctx, &form); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"screen": m.Screen()})
	}
}

// ============================================================
// Onboarding: Stage 1 kickoff scheduling
// ============================================================

func kickoffStatusHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := m.Kickoff()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, k.Status())
	}
}

func kickoffOpenHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := m.Kickoff()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		k.OpenScheduling()
		writeJSON(w, http.StatusAccepted, k.Status())
	}
}

func kickoffRecheckHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/kickoff/recheck")
		defer span.End()

		k, err := m.Kickoff()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, k.Recheck(ctx))
	}
}

func kickoffConfirmHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/kickoff/confirm")
		defer span.End()

		k, err := m.Kickoff()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := k.Confirm(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"screen": m.Screen()})
	}
}

func kickoffLeaveHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := m.Kickoff()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		k.Leave()
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Onboarding: Stage 2 training and contract
// ============================================================

func engagementStatusHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/onboarding/engagement")
		defer span.End()

		e, err := m.Engagement()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		st, err := e.Status(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func completeModuleHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/engagement/modules/{moduleId}/complete")
		defer span.End()

		id, err := idParam(r, "moduleId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("module.id", id))

		e, err := m.Engagement()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		mc, err := e.CompleteModule(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, mc)
	}
}

func contractOpenHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/engagement/contract/open")
		defer span.End()

		e, err := m.Engagement()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		// Load the overview when nothing is cached yet.
		if _, err := e.Overview(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := e.OpenContract(); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		st, err := e.Status(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, st)
	}
}

func contractConfirmHandler(m *onboarding.Machine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/engagement/contract/confirm")
		defer span.End()

		e, err := m.Engagement()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := e.ConfirmContract(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"screen": m.Screen()})
	}
}
