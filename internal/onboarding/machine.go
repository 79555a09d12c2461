package onboarding

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/port"
	"github.com/boddenberg/seal-console/internal/session"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("onboarding")

// API is the part of the remote gateway onboarding needs.
type API interface {
	CompleteStage0(ctx context.Context, form *domain.BriefingForm) (*domain.Profile, error)
	CompleteStage2(ctx context.Context) (*domain.Profile, error)
	CheckSchedule(ctx context.Context) (*domain.ScheduleCheck, error)
	ConfirmSchedule(ctx context.Context) (*domain.StatusMessage, error)
	TrainingOverview(ctx context.Context) (*domain.TrainingOverview, error)
	CompleteModule(ctx context.Context, id int64) (*domain.ModuleCompletion, error)
}

// SessionStore is the view of the session store onboarding reads and refreshes.
type SessionStore interface {
	Snapshot() session.State
	RefreshProfile(ctx context.Context)
}

// Config holds the external pages and the poll cadence.
type Config struct {
	SchedulingURL string
	ContractURL   string
	PollInterval  time.Duration
}

// Option customizes a Machine.
type Option func(*Machine)

// WithPollRecorder counts poll ticks by outcome.
func WithPollRecorder(record func(outcome string)) Option {
	return func(m *Machine) { m.record = record }
}

// Machine owns the onboarding views of one console. Each stage transition is
// confirmed by the server and followed by a profile refresh; the local stage
// never advances on its own.
type Machine struct {
	api      API
	store    SessionStore
	launcher port.Launcher
	training port.Cache[*domain.TrainingOverview]
	cfg      Config
	record   func(outcome string)
	logger   *zap.Logger

	mu         sync.Mutex
	draft      *domain.BriefingForm
	kickoff    *Kickoff
	engagement *Engagement
}

// NewMachine creates a Machine.
func NewMachine(api API, store SessionStore, launcher port.Launcher, training port.Cache[*domain.TrainingOverview], cfg Config, logger *zap.Logger, opts ...Option) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	m := &Machine{
		api:      api,
		store:    store,
		launcher: launcher,
		training: training,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Screen resolves the current screen from the session store.
func (m *Machine) Screen() Screen {
	return Resolve(m.store.Snapshot())
}

// Observe tears down views the operator is no longer on. Wire it to the
// session store's Subscribe.
func (m *Machine) Observe(st session.State) {
	screen := Resolve(st)

	m.mu.Lock()
	var leaving *Kickoff
	if screen != ScreenKickoff && m.kickoff != nil {
		leaving = m.kickoff
		m.kickoff = nil
	}
	if screen != ScreenEngagement {
		m.engagement = nil
	}
	if st.User == nil {
		m.draft = nil
	}
	m.mu.Unlock()

	if leaving != nil {
		leaving.Leave()
	}
}

// Close stops any running poll and waits for it to exit.
func (m *Machine) Close() {
	m.mu.Lock()
	k := m.kickoff
	m.kickoff = nil
	m.mu.Unlock()
	if k != nil {
		<-k.leave()
	}
}

// requireStage checks the operator is signed in, the profile is loaded and
// its stage is want.
func (m *Machine) requireStage(want int, action string) (session.State, error) {
	st := m.store.Snapshot()
	if st.User == nil {
		return st, domain.ErrUnauthenticated
	}
	if st.Profile == nil {
		return st, &domain.ErrNotYetSatisfied{Message: "Perfil ainda carregando"}
	}
	if st.Profile.OnboardingStage != want {
		return st, &domain.ErrInvalidTransition{Stage: st.Profile.OnboardingStage, Action: action}
	}
	return st, nil
}

// ============================================================
// Stage 0: Briefing
// ============================================================

// SubmitBriefing validates and sends the briefing form, then refreshes the
// profile. The form is kept as a draft until the server accepts it.
func (m *Machine) SubmitBriefing(ctx context.Context, form *domain.BriefingForm) error {
	ctx, span := tracer.Start(ctx, "Onboarding.SubmitBriefing")
	defer span.End()

	if _, err := m.requireStage(domain.StageBriefing, "submit-briefing"); err != nil {
		return err
	}

	m.mu.Lock()
	m.draft = copyForm(form)
	m.mu.Unlock()

	if err := form.Validate(); err != nil {
		return err
	}
	if _, err := m.api.CompleteStage0(ctx, form); err != nil {
		m.logger.Warn("briefing submission failed", zap.Error(err))
		return err
	}

	m.mu.Lock()
	m.draft = nil
	m.mu.Unlock()

	m.store.RefreshProfile(ctx)
	return nil
}

// Draft returns the last submitted briefing that was not yet accepted.
func (m *Machine) Draft() *domain.BriefingForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyForm(m.draft)
}

// ============================================================
// Stage 1: Kickoff scheduling
// ============================================================

// EnterKickoff opens a new kickoff view, leaving the previous one.
func (m *Machine) EnterKickoff() (*Kickoff, error) {
	if _, err := m.requireStage(domain.StageKickoff, "enter-kickoff"); err != nil {
		return nil, err
	}

	k := &Kickoff{m: m}
	k.poller = NewPoller(m.api.CheckSchedule, m.cfg.PollInterval, m.record, m.logger)

	m.mu.Lock()
	prev := m.kickoff
	m.kickoff = k
	m.mu.Unlock()

	if prev != nil {
		prev.Leave()
	}
	return k, nil
}

// Kickoff returns the current kickoff view, entering one if none is open.
func (m *Machine) Kickoff() (*Kickoff, error) {
	m.mu.Lock()
	k := m.kickoff
	m.mu.Unlock()
	if k != nil {
		return k, nil
	}
	return m.EnterKickoff()
}

// KickoffStatus is the kickoff view model.
type KickoffStatus struct {
	SchedulingOpened bool       `json:"scheduling_opened"`
	Polling          bool       `json:"polling"`
	HasSchedule      bool       `json:"has_schedule"`
	ScheduleTime     *time.Time `json:"schedule_time"`
	CanConfirm       bool       `json:"can_confirm"`
	LastError        string     `json:"last_error,omitempty"`
}

// Kickoff is the Stage 1 view. It owns the schedule poller.
type Kickoff struct {
	m      *Machine
	poller *Poller

	mu     sync.Mutex
	opened bool
	left   bool
}

// OpenScheduling launches the scheduling page and starts polling.
func (k *Kickoff) OpenScheduling() {
	k.mu.Lock()
	if k.left {
		k.mu.Unlock()
		return
	}
	k.opened = true
	k.mu.Unlock()

	k.m.launcher.Open(k.m.cfg.SchedulingURL)
	k.poller.Start()
}

// Recheck performs one explicit schedule check. It is the only way to
// replace a schedule time already reported.
func (k *Kickoff) Recheck(ctx context.Context) KickoffStatus {
	k.poller.Tick(ctx)
	return k.Status()
}

// Confirm asks the server to confirm the booking. A "pending" answer is a
// retryable warning and leaves the poll untouched.
func (k *Kickoff) Confirm(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Onboarding.ConfirmSchedule")
	defer span.End()

	if _, err := k.m.requireStage(domain.StageKickoff, "confirm-schedule"); err != nil {
		return err
	}

	sm, err := k.m.api.ConfirmSchedule(ctx)
	if err != nil {
		return err
	}
	if sm.Status != domain.StatusOK {
		msg := sm.Message
		if msg == "" {
			msg = "Aguardando confirmação do agendamento"
		}
		return &domain.ErrNotYetSatisfied{Message: msg}
	}

	k.Leave()
	k.m.store.RefreshProfile(ctx)
	return nil
}

// Status returns the view model.
func (k *Kickoff) Status() KickoffStatus {
	k.mu.Lock()
	opened := k.opened
	k.mu.Unlock()

	st := KickoffStatus{
		SchedulingOpened: opened,
		Polling:          k.poller.Running(),
	}
	last, err := k.poller.Last()
	if last != nil {
		st.HasSchedule = last.HasSchedule
		st.ScheduleTime = last.ScheduleTime
		st.CanConfirm = last.HasSchedule
	}
	if err != nil {
		st.LastError = domain.UserMessage(err, "Erro ao verificar agendamento")
	}
	return st
}

// Leave cancels the poll. The view cannot be reopened. It does not wait for
// an in-flight check, so it is safe to call from a session notification
// raised by that check.
func (k *Kickoff) Leave() {
	k.leave()
}

func (k *Kickoff) leave() <-chan struct{} {
	k.mu.Lock()
	k.left = true
	k.mu.Unlock()
	done := k.poller.Stop()

	k.m.mu.Lock()
	if k.m.kickoff == k {
		k.m.kickoff = nil
	}
	k.m.mu.Unlock()
	return done
}

// ============================================================
// Stage 2: Training and contract
// ============================================================

// Engagement returns the current Stage 2 view, entering one if none is open.
func (m *Machine) Engagement() (*Engagement, error) {
	st, err := m.requireStage(domain.StageEngagement, "enter-engagement")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engagement == nil || m.engagement.userID != st.User.ID {
		m.engagement = &Engagement{m: m, userID: st.User.ID}
	}
	return m.engagement, nil
}

// EngagementStatus is the Stage 2 view model.
type EngagementStatus struct {
	Overview        *domain.TrainingOverview `json:"overview"`
	Pending         []domain.TrainingModule  `json:"pending"`
	ContractOpened  bool                     `json:"contract_opened"`
	CanSignContract bool                     `json:"can_sign_contract"`
}

// Engagement is the Stage 2 view: training completion gates the contract.
type Engagement struct {
	m      *Machine
	userID string

	mu             sync.Mutex
	overview       *domain.TrainingOverview
	contractOpened bool
}

func (e *Engagement) cacheKey() string {
	return "training:" + e.userID
}

// Overview returns the training overview, from cache when fresh.
func (e *Engagement) Overview(ctx context.Context) (*domain.TrainingOverview, error) {
	if o, ok := e.m.training.Get(e.cacheKey()); ok {
		e.remember(o)
		return o, nil
	}

	o, err := e.m.api.TrainingOverview(ctx)
	if err != nil {
		return nil, err
	}
	e.m.training.Set(e.cacheKey(), o)
	e.remember(o)
	return o, nil
}

// CompleteModule marks one module complete and invalidates the overview.
func (e *Engagement) CompleteModule(ctx context.Context, id int64) (*domain.ModuleCompletion, error) {
	ctx, span := tracer.Start(ctx, "Onboarding.CompleteModule")
	defer span.End()

	mc, err := e.m.api.CompleteModule(ctx, id)
	if err != nil {
		return nil, err
	}
	e.m.training.Delete(e.cacheKey())
	return mc, nil
}

// OpenContract launches the signing page. Refused while training is pending.
func (e *Engagement) OpenContract() error {
	if err := e.trainingComplete(); err != nil {
		return err
	}
	e.mu.Lock()
	e.contractOpened = true
	e.mu.Unlock()

	e.m.launcher.Open(e.m.cfg.ContractURL)
	return nil
}

// ConfirmContract reports the contract as signed and refreshes the profile.
// It is rejected without a network call while any unlocked module is
// incomplete or before the contract page was opened.
func (e *Engagement) ConfirmContract(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Onboarding.ConfirmContract")
	defer span.End()

	if _, err := e.m.requireStage(domain.StageEngagement, "confirm-contract"); err != nil {
		return err
	}
	if err := e.trainingComplete(); err != nil {
		return err
	}

	e.mu.Lock()
	opened := e.contractOpened
	e.mu.Unlock()
	if !opened {
		return &domain.ErrValidation{Field: "contract", Message: "Abra o contrato antes de confirmar a assinatura"}
	}

	if _, err := e.m.api.CompleteStage2(ctx); err != nil {
		e.m.logger.Warn("contract confirmation failed", zap.Error(err))
		return err
	}
	e.m.store.RefreshProfile(ctx)
	return nil
}

// Status returns the view model, loading the overview when needed.
func (e *Engagement) Status(ctx context.Context) (EngagementStatus, error) {
	o, err := e.Overview(ctx)
	if err != nil {
		return EngagementStatus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngagementStatus{
		Overview:        o,
		Pending:         o.PendingUnlocked(),
		ContractOpened:  e.contractOpened,
		CanSignContract: len(o.PendingUnlocked()) == 0,
	}, nil
}

// trainingComplete checks the last known overview. Unknown counts as incomplete.
func (e *Engagement) trainingComplete() error {
	o := e.lastKnown()
	if o == nil {
		return &domain.ErrTrainingIncomplete{}
	}
	pending := o.PendingUnlocked()
	if len(pending) == 0 {
		return nil
	}
	titles := make([]string, 0, len(pending))
	for _, p := range pending {
		titles = append(titles, p.Title)
	}
	return &domain.ErrTrainingIncomplete{Pending: titles}
}

// lastKnown prefers a fresh cache entry over the overview seen by this view.
func (e *Engagement) lastKnown() *domain.TrainingOverview {
	if o, ok := e.m.training.Get(e.cacheKey()); ok {
		e.remember(o)
		return o
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overview
}

func (e *Engagement) remember(o *domain.TrainingOverview) {
	e.mu.Lock()
	e.overview = o
	e.mu.Unlock()
}

func copyForm(f *domain.BriefingForm) *domain.BriefingForm {
	if f == nil {
		return nil
	}
	cp := *f
	cp.DimensionalScores = maps.Clone(f.DimensionalScores)
	return &cp
}
