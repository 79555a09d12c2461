package handler

import (
	"net/http"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/pipeline"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// CRM pipeline
// ============================================================

// boardView is the board plus the pipeline's transient state.
type boardView struct {
	*domain.Board
	Dragging  *int64 `json:"dragging,omitempty"`
	MoveError string `json:"move_error,omitempty"`
}

func boardHandler(e *pipeline.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/board")
		defer span.End()

		load := e.Board
		if r.URL.Query().Get("fresh") == "true" {
			load = e.Enter
		}
		b, err := load(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		view := boardView{Board: b}
		if id, ok := e.Dragging(); ok {
			view.Dragging = &id
		}
		if err := e.LastError(pipeline.OpMove); err != nil {
			view.MoveError = domain.UserMessage(err, "Erro ao mover lead")
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func listLeadsHandler(e *pipeline.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/crm/leads")
		defer span.End()

		leads, err := e.ListLeads(ctx, domain.LeadStatus(r.URL.Query().Get("status")))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if leads == nil {
			leads = []domain.Lead{}
		}
		writeJSON(w, http.StatusOK, leads)
	}
}

func createLeadHandler(e *pipeline.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/crm/leads")
		defer span.End()

		var in domain.CreateLeadInput
		if err := decodeJSON(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		lead, err := e.CreateLead(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, lead)
	}
}

func updateLeadHandler(e *pipeline.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/crm/leads/{leadId}")
		defer span.End()

		id, err := idParam(r, "leadId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("lead.id", id))

		var patch domain.LeadPatch
		if err := decodeJSON(r, &patch); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		lead, err := e.UpdateLead(ctx, id, &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

type moveRequest struct {
	Status domain.LeadStatus `json:"status"`
}

func moveLeadHandler(e *pipeline.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/crm/leads/{leadId}/move")
		defer span.End()

		id, err := idParam(r, "leadId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("lead.id", id))

		var req moveRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		lead, err := e.MoveLead(ctx, id, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func deleteLeadHandler(e *pipeline.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/crm/leads/{leadId}")
		defer span.End()

		id, err := idParam(r, "leadId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("lead.id", id))

		if err := e.DeleteLead(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func beginDragHandler(e *pipeline.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID int64 `json:"id"`
		}
		if err := decodeJSON(r, &req); err != nil || req.ID <= 0 {
			writeError(w, http.StatusBadRequest, "Identificador inválido")
			return
		}
		e.BeginDrag(req.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func dropHandler(e *pipeline.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/crm/drop")
		defer span.End()

		var req moveRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		lead, err := e.Drop(ctx, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}
