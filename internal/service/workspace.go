package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/port"
	"github.com/boddenberg/seal-console/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/workspace")

// API is the part of the remote gateway the workspace reads from.
type API interface {
	UpdateProfile(ctx context.Context, update *domain.ProfileUpdate) (*domain.Profile, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
	port.TrainingAPI
	port.ResourcesAPI
	port.CommissionsAPI
}

// BoardReader yields the operator's current board.
type BoardReader interface {
	Board(ctx context.Context) (*domain.Board, error)
}

// ProfileStore is the session store as seen by the workspace.
type ProfileStore interface {
	Snapshot() session.State
	SetProfile(p *domain.Profile)
}

// Workspace orchestrates the operational views: dashboard, training,
// resource library and commissions.
type Workspace struct {
	api     API
	board   BoardReader
	store   ProfileStore
	cache   port.Cache[any]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewWorkspace creates the workspace service with all dependencies injected.
func NewWorkspace(
	api API,
	board BoardReader,
	store ProfileStore,
	cache port.Cache[any],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Workspace {
	return &Workspace{
		api:     api,
		board:   board,
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

func (w *Workspace) userID() (string, error) {
	st := w.store.Snapshot()
	if st.User == nil {
		return "", domain.ErrUnauthenticated
	}
	return st.User.ID, nil
}

// cached returns the value under key, loading and storing it on a miss.
func cached[T any](w *Workspace, name, key string, load func() (T, error)) (T, error) {
	if v, ok := w.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			w.metrics.IncrCacheHit(name)
			return t, nil
		}
	}
	w.metrics.IncrCacheMiss(name)

	t, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	w.cache.Set(key, t)
	return t, nil
}

// ============================================================
// Profile & dashboard
// ============================================================

// UpdateProfile edits the operator profile and hands the stored result to
// the session store.
func (w *Workspace) UpdateProfile(ctx context.Context, update *domain.ProfileUpdate) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Workspace.UpdateProfile")
	defer span.End()

	if update.FullName != nil && strings.TrimSpace(*update.FullName) == "" {
		return nil, &domain.ErrValidation{Field: "full_name", Message: "Nome é obrigatório"}
	}
	if update.FinancialGoal != nil && *update.FinancialGoal <= 0 {
		return nil, &domain.ErrValidation{Field: "financial_goal", Message: "Meta financeira deve ser positiva"}
	}

	p, err := w.api.UpdateProfile(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("profile update: %w", err)
	}
	w.store.SetProfile(p)
	return p, nil
}

// Dashboard returns the aggregated operator report.
func (w *Workspace) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "Workspace.Dashboard")
	defer span.End()

	return w.api.DashboardStats(ctx)
}

// WarRoom builds the operational dashboard. Stats, board, commissions and
// the tier table are fetched concurrently; any failure fails the view.
func (w *Workspace) WarRoom(ctx context.Context) (*domain.WarRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Workspace.WarRoom")
	defer span.End()

	uid, err := w.userID()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", uid))

	var (
		stats       *domain.DashboardStats
		board       *domain.Board
		commissions *domain.CommissionSummary
		rules       *domain.CommissionRules
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s, err := w.api.DashboardStats(gCtx)
		if err != nil {
			w.logger.Error("failed to fetch dashboard stats", zap.String("user_id", uid), zap.Error(err))
			return fmt.Errorf("dashboard stats: %w", err)
		}
		stats = s
		return nil
	})

	g.Go(func() error {
		b, err := w.board.Board(gCtx)
		if err != nil {
			w.logger.Error("failed to load board", zap.String("user_id", uid), zap.Error(err))
			return fmt.Errorf("board: %w", err)
		}
		board = b
		return nil
	})

	g.Go(func() error {
		c, err := w.api.CommissionSummary(gCtx)
		if err != nil {
			w.logger.Error("failed to fetch commission summary", zap.String("user_id", uid), zap.Error(err))
			return fmt.Errorf("commission summary: %w", err)
		}
		commissions = c
		return nil
	})

	g.Go(func() error {
		r, err := w.rules(gCtx)
		if err != nil {
			w.logger.Error("failed to fetch commission rules", zap.Error(err))
			return fmt.Errorf("commission rules: %w", err)
		}
		rules = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.WarRoom{
		Stats:       stats,
		Board:       board,
		Commissions: commissions,
		Tier:        rules.TierFor(stats.FamiliesSaved),
	}, nil
}

// ============================================================
// Training
// ============================================================

// TrainingOverview returns every module with the operator's progress.
func (w *Workspace) TrainingOverview(ctx context.Context) (*domain.TrainingOverview, error) {
	ctx, span := tracer.Start(ctx, "Workspace.TrainingOverview")
	defer span.End()

	return w.api.TrainingOverview(ctx)
}

// TrainingModule returns one module.
func (w *Workspace) TrainingModule(ctx context.Context, id int64) (*domain.TrainingModule, error) {
	ctx, span := tracer.Start(ctx, "Workspace.TrainingModule")
	defer span.End()
	span.SetAttributes(attribute.Int64("module.id", id))

	return w.api.TrainingModule(ctx, id)
}

// PendingModules returns the unlocked modules not yet completed.
func (w *Workspace) PendingModules(ctx context.Context) ([]domain.TrainingModule, error) {
	ctx, span := tracer.Start(ctx, "Workspace.PendingModules")
	defer span.End()

	return w.api.PendingModules(ctx)
}

// ============================================================
// Resources
// ============================================================

// Arsenal returns the categorized resource library, cached per operator.
func (w *Workspace) Arsenal(ctx context.Context) (*domain.Arsenal, error) {
	ctx, span := tracer.Start(ctx, "Workspace.Arsenal")
	defer span.End()

	uid, err := w.userID()
	if err != nil {
		return nil, err
	}
	return cached(w, "arsenal", "arsenal:"+uid, func() (*domain.Arsenal, error) {
		return w.api.Arsenal(ctx)
	})
}

// ListResources lists resources, optionally of one category.
func (w *Workspace) ListResources(ctx context.Context, category string) ([]domain.Resource, error) {
	ctx, span := tracer.Start(ctx, "Workspace.ListResources")
	defer span.End()

	category = strings.ToUpper(strings.TrimSpace(category))
	switch category {
	case "", domain.CategoryScript, domain.CategoryPlaybook, domain.CategoryTemplate, domain.CategoryGuide:
	default:
		return nil, &domain.ErrValidation{Field: "category", Message: fmt.Sprintf("Categoria inválida: %s", category)}
	}
	return w.api.ListResources(ctx, category)
}

// RegisterDownload counts a download and returns the file location. The
// library cache is dropped so the new count shows on the next read.
func (w *Workspace) RegisterDownload(ctx context.Context, id int64) (*domain.Download, error) {
	ctx, span := tracer.Start(ctx, "Workspace.RegisterDownload")
	defer span.End()

	uid, err := w.userID()
	if err != nil {
		return nil, err
	}
	d, err := w.api.RegisterDownload(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("register download: %w", err)
	}
	w.cache.Delete("arsenal:" + uid)
	w.cache.Delete("categories:" + uid)
	return d, nil
}

// ResourceCategories returns the per-category counts of the library,
// cached per operator alongside the arsenal.
func (w *Workspace) ResourceCategories(ctx context.Context) ([]domain.CategoryStats, error) {
	ctx, span := tracer.Start(ctx, "Workspace.ResourceCategories")
	defer span.End()

	uid, err := w.userID()
	if err != nil {
		return nil, err
	}
	return cached(w, "resource_categories", "categories:"+uid, func() ([]domain.CategoryStats, error) {
		return w.api.ResourceCategories(ctx)
	})
}

// ============================================================
// Commissions
// ============================================================

// CommissionSummary returns totals by status.
func (w *Workspace) CommissionSummary(ctx context.Context) (*domain.CommissionSummary, error) {
	ctx, span := tracer.Start(ctx, "Workspace.CommissionSummary")
	defer span.End()

	return w.api.CommissionSummary(ctx)
}

// CommissionRules returns the tier table. It is the same for every
// operator and cached accordingly.
func (w *Workspace) CommissionRules(ctx context.Context) (*domain.CommissionRules, error) {
	ctx, span := tracer.Start(ctx, "Workspace.CommissionRules")
	defer span.End()

	return w.rules(ctx)
}

func (w *Workspace) rules(ctx context.Context) (*domain.CommissionRules, error) {
	return cached(w, "commission_rules", "commission-rules", func() (*domain.CommissionRules, error) {
		return w.api.CommissionRules(ctx)
	})
}

// ListCommissions lists commission entries, optionally by status.
func (w *Workspace) ListCommissions(ctx context.Context, status string) ([]domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "Workspace.ListCommissions")
	defer span.End()

	return w.api.ListCommissions(ctx, strings.ToUpper(strings.TrimSpace(status)))
}

// PendingCommissions lists the entries not yet paid.
func (w *Workspace) PendingCommissions(ctx context.Context) ([]domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "Workspace.PendingCommissions")
	defer span.End()

	return w.api.PendingCommissions(ctx)
}

// CommissionStats returns the per-status report with goal progress.
func (w *Workspace) CommissionStats(ctx context.Context) (*domain.CommissionStats, error) {
	ctx, span := tracer.Start(ctx, "Workspace.CommissionStats")
	defer span.End()

	return w.api.CommissionStats(ctx)
}
