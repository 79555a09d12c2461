package handler

import (
	"net/http"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Profile & dashboard
// ============================================================

func dashboardHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := ws.Dashboard(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func warRoomHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/war-room")
		defer span.End()

		view, err := ws.WarRoom(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func updateProfileHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/profile")
		defer span.End()

		var update domain.ProfileUpdate
		if err := decodeJSON(r, &update); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		p, err := ws.UpdateProfile(ctx, &update)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// ============================================================
// Training
// ============================================================

func trainingOverviewHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := ws.TrainingOverview(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func pendingModulesHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mods, err := ws.PendingModules(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if mods == nil {
			mods = []domain.TrainingModule{}
		}
		writeJSON(w, http.StatusOK, mods)
	}
}

func trainingModuleHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "moduleId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		m, err := ws.TrainingModule(r.Context(), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// ============================================================
// Resources
// ============================================================

func listResourcesHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := ws.ListResources(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if res == nil {
			res = []domain.Resource{}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func arsenalHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ws.Arsenal(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func resourceCategoriesHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := ws.ResourceCategories(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if stats == nil {
			stats = []domain.CategoryStats{}
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func downloadHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/resources/{resourceId}/download")
		defer span.End()

		id, err := idParam(r, "resourceId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("resource.id", id))

		d, err := ws.RegisterDownload(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// ============================================================
// Commissions
// ============================================================

func listCommissionsHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := ws.ListCommissions(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Commission{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func commissionSummaryHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ws.CommissionSummary(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func commissionRulesHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := ws.CommissionRules(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func pendingCommissionsHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := ws.PendingCommissions(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Commission{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func commissionStatsHandler(ws *service.Workspace, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ws.CommissionStats(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
