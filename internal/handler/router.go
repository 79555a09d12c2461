package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/guard"
	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/onboarding"
	"github.com/boddenberg/seal-console/internal/pipeline"
	"github.com/boddenberg/seal-console/internal/port"
	"github.com/boddenberg/seal-console/internal/service"
	"github.com/boddenberg/seal-console/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthReporter reports the state of one remote dependency.
type HealthReporter interface {
	Health() domain.ServiceHealth
}

// Services bundles what the console serves.
type Services struct {
	Session    *session.Store
	Onboarding *onboarding.Machine
	Pipeline   *pipeline.Engine
	Workspace  *service.Workspace
	// Dev is nil outside dev mode; the /v1/dev routes are then not mounted.
	Dev         port.DevAPI
	Health      []HealthReporter
	Metrics     *observability.Metrics
	CORSOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(svc.CORSOrigins))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Health))
	r.Get("/readyz", readyzHandler(svc.Session))
	r.Handle("/metrics", promhttp.HandlerFor(svc.Metrics.Registry, promhttp.HandlerOpts{}))

	signedIn := guard.Middleware(svc.Session, nil, logger)
	operational := guard.Middleware(svc.Session, guard.Stage(domain.StageOperational), logger)

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(svc.Session))

		r.Get("/diagnostics", diagnosticsHandler(svc.Metrics))

		// =============================================
		// Session
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", signInHandler(svc.Session, logger))
			r.Post("/signup", signUpHandler(svc.Session, logger))
			r.Post("/logout", signOutHandler(svc.Session, logger))
			r.Get("/me", meHandler(svc.Session))
		})

		// =============================================
		// Onboarding
		// =============================================
		r.Route("/onboarding", func(r chi.Router) {
			r.Use(signedIn)

			r.Get("/briefing", briefingDraftHandler(svc.Onboarding))
			r.Post("/briefing", submitBriefingHandler(svc.Onboarding, logger))

			r.Get("/kickoff", kickoffStatusHandler(svc.Onboarding, logger))
			r.Post("/kickoff/open", kickoffOpenHandler(svc.Onboarding, logger))
			r.Post("/kickoff/recheck", kickoffRecheckHandler(svc.Onboarding, logger))
			r.Post("/kickoff/confirm", kickoffConfirmHandler(svc.Onboarding, logger))
			r.Post("/kickoff/leave", kickoffLeaveHandler(svc.Onboarding, logger))

			r.Get("/engagement", engagementStatusHandler(svc.Onboarding, logger))
			r.Post("/engagement/modules/{moduleId}/complete", completeModuleHandler(svc.Onboarding, logger))
			r.Post("/engagement/contract/open", contractOpenHandler(svc.Onboarding, logger))
			r.Post("/engagement/contract/confirm", contractConfirmHandler(svc.Onboarding, logger))
		})

		// =============================================
		// Operational workspace
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(operational)

			r.Route("/crm", func(r chi.Router) {
				r.Get("/board", boardHandler(svc.Pipeline, logger))
				r.Get("/leads", listLeadsHandler(svc.Pipeline, logger))
				r.Post("/leads", createLeadHandler(svc.Pipeline, logger))
				r.Put("/leads/{leadId}", updateLeadHandler(svc.Pipeline, logger))
				r.Patch("/leads/{leadId}/move", moveLeadHandler(svc.Pipeline, logger))
				r.Delete("/leads/{leadId}", deleteLeadHandler(svc.Pipeline, logger))
				r.Post("/drag", beginDragHandler(svc.Pipeline))
				r.Post("/drop", dropHandler(svc.Pipeline, logger))
			})

			r.Get("/dashboard", dashboardHandler(svc.Workspace, logger))
			r.Get("/war-room", warRoomHandler(svc.Workspace, logger))
			r.Put("/profile", updateProfileHandler(svc.Workspace, logger))

			r.Get("/training", trainingOverviewHandler(svc.Workspace, logger))
			r.Get("/training/pending", pendingModulesHandler(svc.Workspace, logger))
			r.Get("/training/modules/{moduleId}", trainingModuleHandler(svc.Workspace, logger))

			r.Get("/resources", listResourcesHandler(svc.Workspace, logger))
			r.Get("/resources/arsenal", arsenalHandler(svc.Workspace, logger))
			r.Get("/resources/categories", resourceCategoriesHandler(svc.Workspace, logger))
			r.Post("/resources/{resourceId}/download", downloadHandler(svc.Workspace, logger))

			r.Get("/commissions", listCommissionsHandler(svc.Workspace, logger))
			r.Get("/commissions/summary", commissionSummaryHandler(svc.Workspace, logger))
			r.Get("/commissions/rules", commissionRulesHandler(svc.Workspace, logger))
			r.Get("/commissions/pending", pendingCommissionsHandler(svc.Workspace, logger))
			r.Get("/commissions/stats", commissionStatsHandler(svc.Workspace, logger))
		})

		// =============================================
		// Dev tools
		// =============================================
		if svc.Dev != nil {
			r.Route("/dev", func(r chi.Router) {
				r.Use(signedIn)
				r.Post("/simulate-schedule", devHandler("simulate-schedule", svc.Dev.DevSimulateSchedule, svc.Session, logger))
				r.Post("/simulate-contract", devHandler("simulate-contract", svc.Dev.DevSimulateContract, svc.Session, logger))
				r.Post("/complete-training", devHandler("complete-training", svc.Dev.DevCompleteTraining, svc.Session, logger))
			})
		}
	})

	return r
}

// ============================================================
// Health & Diagnostics
// ============================================================

func healthzHandler(deps []HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := []domain.ServiceHealth{
			{Name: "console", Status: "healthy", LastChecked: time.Now().UTC().Format(time.RFC3339)},
		}
		for _, d := range deps {
			services = append(services, d.Health())
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler is ready once the session store has finished loading.
func readyzHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store.Snapshot().Loading {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func diagnosticsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
