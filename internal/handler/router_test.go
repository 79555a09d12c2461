package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/handler"
	"github.com/boddenberg/seal-console/internal/infra/cache"
	"github.com/boddenberg/seal-console/internal/infra/gateway"
	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/infra/resilience"
	"github.com/boddenberg/seal-console/internal/onboarding"
	"github.com/boddenberg/seal-console/internal/pipeline"
	"github.com/boddenberg/seal-console/internal/port"
	"github.com/boddenberg/seal-console/internal/service"
	"github.com/boddenberg/seal-console/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================================
// Fakes
// ============================================================

// fakeIdentity signs in anyone and never emits notifications.
type fakeIdentity struct{}

func (fakeIdentity) SignIn(_ context.Context, email, _ string) (*domain.Session, error) {
	return &domain.Session{
		UserID:      "u-1",
		AccessToken: "tok-1",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        domain.User{ID: "u-1", Email: email},
	}, nil
}

func (fakeIdentity) SignUp(_ context.Context, email, _ string) (*domain.User, *domain.Session, error) {
	return &domain.User{ID: "u-2", Email: email}, nil, nil
}

func (fakeIdentity) SignOut(context.Context) error { return nil }

func (fakeIdentity) CurrentSession(context.Context) (*domain.Session, error) { return nil, nil }

func (fakeIdentity) OnAuthStateChange(port.AuthStateListener) func() { return func() {} }

type noopLauncher struct{}

func (noopLauncher) Open(string) {}

// backend is an in-memory stand-in for the remote SEAL API.
type backend struct {
	mu             sync.Mutex
	stage          int
	scheduleStatus string
	leads          []domain.Lead
}

func (b *backend) handler(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/profiles/me", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		json.NewEncoder(w).Encode(domain.Profile{ID: "u-1", OnboardingStage: b.stage, FullName: "Operadora"})
	})

	r.Post("/onboarding/confirm-schedule", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.scheduleStatus == domain.StatusOK {
			b.stage = domain.StageEngagement
			json.NewEncoder(w).Encode(domain.StatusMessage{Status: domain.StatusOK})
			return
		}
		json.NewEncoder(w).Encode(domain.StatusMessage{Status: domain.StatusPending, Message: "Nenhum agendamento encontrado"})
	})

	r.Get("/crm/board", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		p := domain.BoardPayload{TotalCount: len(b.leads)}
		for _, l := range b.leads {
			switch l.Status {
			case domain.StatusRadar:
				p.Radar = append(p.Radar, l)
			case domain.StatusCombate:
				p.Combate = append(p.Combate, l)
			case domain.StatusExtracao:
				p.Extracao = append(p.Extracao, l)
			case domain.StatusResgate:
				p.Resgate = append(p.Resgate, l)
			}
		}
		json.NewEncoder(w).Encode(p)
	})

	r.Patch("/crm/leads/{id}/move", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		var body struct {
			Status domain.LeadStatus `json:"status"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.leads {
			if b.leads[i].ID == id {
				b.leads[i].Status = body.Status
				json.NewEncoder(w).Encode(b.leads[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Lead não encontrado"}`))
	})

	r.Get("/resources/categories", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]domain.CategoryStats{
			{Category: domain.CategoryPlaybook, CategoryDisplay: "Playbooks Táticos", Count: 3, TotalDownloads: 12},
		})
	})

	r.Get("/commissions/pending", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	r.Get("/commissions/stats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.CommissionStats{TotalCommissions: 5, FinancialGoal: 10000})
	})

	return r
}

// console wires the real components against a backend.
type console struct {
	router http.Handler
	store  *session.Store
}

func newConsole(t *testing.T, b *backend) *console {
	t.Helper()

	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store := session.NewStore(fakeIdentity{}, nil, logger)
	cb := resilience.NewCircuitBreaker("test-api", resilience.IsOutage, logger)
	gw := gateway.NewClient(srv.Client(), srv.URL, store, cb,
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}, logger,
		gateway.WithMetrics(metrics))
	store.SetProfileFetcher(gw)

	training := cache.New[*domain.TrainingOverview](time.Minute)
	boards := cache.New[*pipeline.Collection](time.Minute)
	shared := cache.New[any](time.Minute)
	t.Cleanup(func() {
		training.Close()
		boards.Close()
		shared.Close()
	})

	machine := onboarding.NewMachine(gw, store, noopLauncher{}, training, onboarding.Config{PollInterval: time.Hour}, logger)
	t.Cleanup(machine.Close)
	engine := pipeline.NewEngine(gw, store, boards, logger, pipeline.WithMetrics(metrics))
	ws := service.NewWorkspace(gw, engine, store, shared, metrics, logger)
	store.Subscribe(machine.Observe)
	store.Subscribe(engine.Observe)

	router := handler.NewRouter(handler.Services{
		Session:    store,
		Onboarding: machine,
		Pipeline:   engine,
		Workspace:  ws,
		Health:     []handler.HealthReporter{gw},
		Metrics:    metrics,
	}, logger)

	return &console{router: router, store: store}
}

func (c *console) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ============================================================
// Operational endpoints
// ============================================================

func TestHealthz(t *testing.T) {
	c := newConsole(t, &backend{})

	rec := c.do(t, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[domain.HealthStatus](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Services, 2)
}

func TestReadyz_LoadingUntilInitialized(t *testing.T) {
	c := newConsole(t, &backend{})

	assert.Equal(t, http.StatusServiceUnavailable, c.do(t, http.MethodGet, "/readyz", "").Code)

	require.NoError(t, c.store.Initialize(context.Background()))
	assert.Equal(t, http.StatusOK, c.do(t, http.MethodGet, "/readyz", "").Code)
}

func TestMetrics(t *testing.T) {
	c := newConsole(t, &backend{})

	rec := c.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================
// Guard
// ============================================================

func TestGuard_WaitsWhileLoadingThenRedirectsToSignIn(t *testing.T) {
	c := newConsole(t, &backend{})

	rec := c.do(t, http.MethodGet, "/v1/crm/board", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, c.store.Initialize(context.Background()))

	rec = c.do(t, http.MethodGet, "/v1/crm/board", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLogin_ValidatesCredentials(t *testing.T) {
	c := newConsole(t, &backend{})
	require.NoError(t, c.store.Initialize(context.Background()))

	rec := c.do(t, http.MethodPost, "/v1/auth/login", `{"email":"  ","password":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, c.store.Snapshot().User)
}

func TestSignUp_WithoutSessionIsPendingConfirmation(t *testing.T) {
	c := newConsole(t, &backend{})
	require.NoError(t, c.store.Initialize(context.Background()))

	rec := c.do(t, http.MethodPost, "/v1/auth/signup", `{"email":"nova@seal.dev","password":"segredo"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["confirmation_pending"])
	assert.Nil(t, c.store.Snapshot().User)
}

// ============================================================
// End-to-end flows
// ============================================================

func TestFlow_OperationalOperatorMovesLead(t *testing.T) {
	b := &backend{
		stage: domain.StageOperational,
		leads: []domain.Lead{
			{ID: 1, Name: "Ana", Status: domain.StatusRadar},
			{ID: 2, Name: "Bruno", Status: domain.StatusCombate},
		},
	}
	c := newConsole(t, b)
	require.NoError(t, c.store.Initialize(context.Background()))

	rec := c.do(t, http.MethodPost, "/v1/auth/login", `{"email":"op@seal.dev","password":"segredo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[map[string]any](t, rec)
	assert.Equal(t, string(onboarding.ScreenOperational), me["screen"])

	rec = c.do(t, http.MethodGet, "/v1/crm/board", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	board := decode[domain.Board](t, rec)
	require.Len(t, board.Buckets, 4)
	assert.Equal(t, domain.StatusRadar, board.Buckets[0].Status)
	assert.Equal(t, 2, board.TotalCount)

	rec = c.do(t, http.MethodPatch, "/v1/crm/leads/1/move", `{"status":"EXTRAÇÃO"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(t, http.MethodGet, "/v1/crm/board", "")
	board = decode[domain.Board](t, rec)
	assert.Empty(t, board.Bucket(domain.StatusRadar))
	require.Len(t, board.Bucket(domain.StatusExtracao), 1)
	assert.Equal(t, "Ana", board.Bucket(domain.StatusExtracao)[0].Name)
	assert.Equal(t, 2, board.TotalCount)

	rec = c.do(t, http.MethodPatch, "/v1/crm/leads/1/move", `{"status":"PERDIDO"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlow_OperationalReports(t *testing.T) {
	c := newConsole(t, &backend{stage: domain.StageOperational})
	require.NoError(t, c.store.Initialize(context.Background()))
	require.Equal(t, http.StatusOK, c.do(t, http.MethodPost, "/v1/auth/login", `{"email":"op@seal.dev","password":"x"}`).Code)

	rec := c.do(t, http.MethodGet, "/v1/resources/categories", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cats := decode[[]domain.CategoryStats](t, rec)
	require.Len(t, cats, 1)
	assert.Equal(t, 12, cats[0].TotalDownloads)

	rec = c.do(t, http.MethodGet, "/v1/commissions/pending", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = c.do(t, http.MethodGet, "/v1/commissions/stats", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decode[domain.CommissionStats](t, rec).TotalCommissions)
}

func TestFlow_KickoffConfirmAdvancesToEngagement(t *testing.T) {
	b := &backend{stage: domain.StageKickoff, scheduleStatus: domain.StatusPending}
	c := newConsole(t, b)
	require.NoError(t, c.store.Initialize(context.Background()))

	rec := c.do(t, http.MethodPost, "/v1/auth/login", `{"email":"op@seal.dev","password":"segredo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(t, http.MethodGet, "/v1/crm/board", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = c.do(t, http.MethodPost, "/v1/onboarding/kickoff/confirm", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Nenhum agendamento encontrado", decode[map[string]string](t, rec)["warning"])
	assert.Equal(t, domain.StageKickoff, c.store.Snapshot().Profile.OnboardingStage)

	b.mu.Lock()
	b.scheduleStatus = domain.StatusOK
	b.mu.Unlock()

	rec = c.do(t, http.MethodPost, "/v1/onboarding/kickoff/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(onboarding.ScreenEngagement), decode[map[string]string](t, rec)["screen"])
	assert.Equal(t, domain.StageEngagement, c.store.Snapshot().Profile.OnboardingStage)
}

func TestFlow_SignOutDropsAccess(t *testing.T) {
	c := newConsole(t, &backend{stage: domain.StageOperational})
	require.NoError(t, c.store.Initialize(context.Background()))

	require.Equal(t, http.StatusOK, c.do(t, http.MethodPost, "/v1/auth/login", `{"email":"op@seal.dev","password":"x"}`).Code)
	require.Equal(t, http.StatusOK, c.do(t, http.MethodPost, "/v1/auth/logout", "").Code)

	rec := c.do(t, http.MethodGet, "/v1/crm/board", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestDevRoutes_NotMountedWithoutDevAPI(t *testing.T) {
	c := newConsole(t, &backend{stage: domain.StageKickoff})
	require.NoError(t, c.store.Initialize(context.Background()))

	rec := c.do(t, http.MethodPost, "/v1/dev/simulate-schedule", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
