package onboarding_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/infra/cache"
	"github.com/boddenberg/seal-console/internal/onboarding"
	"github.com/boddenberg/seal-console/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAPI is an in-memory onboarding backend.
type fakeAPI struct {
	mu sync.Mutex

	stage0Err  error
	stage0     int
	stage2     int
	schedule   *domain.ScheduleCheck
	checks     int
	confirm    *domain.StatusMessage
	overview   *domain.TrainingOverview
	overviews  int
	completed  []int64
	onComplete func(id int64)
}

func (f *fakeAPI) CompleteStage0(context.Context, *domain.BriefingForm) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage0++
	if f.stage0Err != nil {
		return nil, f.stage0Err
	}
	return &domain.Profile{OnboardingStage: domain.StageKickoff}, nil
}

func (f *fakeAPI) CompleteStage2(context.Context) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage2++
	return &domain.Profile{OnboardingStage: domain.StageOperational}, nil
}

func (f *fakeAPI) CheckSchedule(context.Context) (*domain.ScheduleCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	cp := *f.schedule
	return &cp, nil
}

func (f *fakeAPI) ConfirmSchedule(context.Context) (*domain.StatusMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.confirm
	return &cp, nil
}

func (f *fakeAPI) TrainingOverview(context.Context) (*domain.TrainingOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overviews++
	cp := *f.overview
	cp.Modules = append([]domain.TrainingModule(nil), f.overview.Modules...)
	return &cp, nil
}

func (f *fakeAPI) CompleteModule(_ context.Context, id int64) (*domain.ModuleCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	for i := range f.overview.Modules {
		if f.overview.Modules[i].ID == id {
			f.overview.Modules[i].IsCompleted = true
		}
	}
	return &domain.ModuleCompletion{Status: domain.StatusOK, ModuleID: id}, nil
}

func (f *fakeAPI) Checks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

// fakeStore serves a fixed snapshot; refresh advances the stage when set.
type fakeStore struct {
	mu        sync.Mutex
	state     session.State
	refreshes int
	nextStage *int
}

func storeAt(stage int) *fakeStore {
	return &fakeStore{state: session.State{
		User:    &domain.User{ID: "u-1", Email: "ana@seal.dev"},
		Profile: &domain.Profile{ID: "u-1", OnboardingStage: stage},
	}}
}

func (s *fakeStore) Snapshot() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Profile != nil {
		p := *st.Profile
		st.Profile = &p
	}
	return st
}

func (s *fakeStore) RefreshProfile(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.nextStage != nil && s.state.Profile != nil {
		s.state.Profile.OnboardingStage = *s.nextStage
	}
}

func (s *fakeStore) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

type fakeLauncher struct {
	mu   sync.Mutex
	urls []string
}

func (l *fakeLauncher) Open(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
}

func (l *fakeLauncher) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

var testConfig = onboarding.Config{
	SchedulingURL: "https://cal.example/seal",
	ContractURL:   "https://sign.example/seal",
	PollInterval:  time.Hour,
}

func newMachine(t *testing.T, api *fakeAPI, store *fakeStore, launcher *fakeLauncher, cfg onboarding.Config) *onboarding.Machine {
	t.Helper()
	training := cache.New[*domain.TrainingOverview](time.Minute)
	t.Cleanup(training.Close)
	m := onboarding.NewMachine(api, store, launcher, training, cfg, zap.NewNop())
	t.Cleanup(m.Close)
	return m
}

func validForm() *domain.BriefingForm {
	scores := map[string]int{}
	for _, d := range domain.Dimensions {
		scores[d] = 7
	}
	return &domain.BriefingForm{
		FullName:          "Ana Souza",
		Phone:             "11999990000",
		PixKey:            "ana@pix",
		FinancialGoal:     15000,
		DimensionalScores: scores,
	}
}

func TestResolve(t *testing.T) {
	user := &domain.User{ID: "u-1"}
	tests := []struct {
		name  string
		state session.State
		want  onboarding.Screen
	}{
		{"loading", session.State{Loading: true, User: user}, onboarding.ScreenLoading},
		{"no user", session.State{}, onboarding.ScreenSignIn},
		{"profile not loaded", session.State{User: user}, onboarding.ScreenLoading},
		{"stage 0", session.State{User: user, Profile: &domain.Profile{OnboardingStage: 0}}, onboarding.ScreenBriefing},
		{"stage 1", session.State{User: user, Profile: &domain.Profile{OnboardingStage: 1}}, onboarding.ScreenKickoff},
		{"stage 2", session.State{User: user, Profile: &domain.Profile{OnboardingStage: 2}}, onboarding.ScreenEngagement},
		{"stage 3", session.State{User: user, Profile: &domain.Profile{OnboardingStage: 3}}, onboarding.ScreenOperational},
		{"beyond 3", session.State{User: user, Profile: &domain.Profile{OnboardingStage: 7}}, onboarding.ScreenOperational},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, onboarding.Resolve(tt.state))
		})
	}
}

func TestSubmitBriefing_InvalidFormKeepsDraftWithoutCall(t *testing.T) {
	api := &fakeAPI{}
	m := newMachine(t, api, storeAt(domain.StageBriefing), &fakeLauncher{}, testConfig)

	form := validForm()
	form.DimensionalScores["mindset"] = 11

	err := m.SubmitBriefing(context.Background(), form)

	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "heptagram_scores.mindset", verr.Field)
	assert.Zero(t, api.stage0)
	require.NotNil(t, m.Draft())
	assert.Equal(t, "Ana Souza", m.Draft().FullName)
}

func TestSubmitBriefing_RemoteFailureKeepsStageAndDraft(t *testing.T) {
	api := &fakeAPI{stage0Err: &domain.ErrRemote{Status: 400, Message: "Esta etapa não está disponível."}}
	store := storeAt(domain.StageBriefing)
	m := newMachine(t, api, store, &fakeLauncher{}, testConfig)

	err := m.SubmitBriefing(context.Background(), validForm())

	require.Error(t, err)
	assert.Equal(t, "Esta etapa não está disponível.", domain.UserMessage(err, ""))
	assert.Zero(t, store.Refreshes())
	assert.Equal(t, onboarding.ScreenBriefing, m.Screen())
	assert.NotNil(t, m.Draft(), "retry needs no re-entry")
}

func TestSubmitBriefing_SuccessRefreshesProfile(t *testing.T) {
	api := &fakeAPI{}
	store := storeAt(domain.StageBriefing)
	next := domain.StageKickoff
	store.nextStage = &next
	m := newMachine(t, api, store, &fakeLauncher{}, testConfig)

	require.NoError(t, m.SubmitBriefing(context.Background(), validForm()))

	assert.Equal(t, 1, api.stage0)
	assert.Equal(t, 1, store.Refreshes())
	assert.Nil(t, m.Draft())
	assert.Equal(t, onboarding.ScreenKickoff, m.Screen())
}

func TestSubmitBriefing_WrongStage(t *testing.T) {
	api := &fakeAPI{}
	m := newMachine(t, api, storeAt(domain.StageEngagement), &fakeLauncher{}, testConfig)

	err := m.SubmitBriefing(context.Background(), validForm())

	var terr *domain.ErrInvalidTransition
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StageEngagement, terr.Stage)
	assert.Zero(t, api.stage0)
}

func TestOperationalStageIsTerminal(t *testing.T) {
	m := newMachine(t, &fakeAPI{}, storeAt(domain.StageOperational), &fakeLauncher{}, testConfig)

	assert.Equal(t, onboarding.ScreenOperational, m.Screen())

	_, err := m.EnterKickoff()
	assert.Error(t, err)
	_, err = m.Engagement()
	assert.Error(t, err)
	assert.Error(t, m.SubmitBriefing(context.Background(), validForm()))
}

func TestKickoff_PollsUntilScheduleThenConfirms(t *testing.T) {
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		schedule: &domain.ScheduleCheck{},
		confirm:  &domain.StatusMessage{Status: domain.StatusPending, Message: "Agendamento ainda não encontrado."},
	}
	store := storeAt(domain.StageKickoff)
	launcher := &fakeLauncher{}
	cfg := testConfig
	cfg.PollInterval = 2 * time.Millisecond
	m := newMachine(t, api, store, launcher, cfg)

	k, err := m.EnterKickoff()
	require.NoError(t, err)
	k.OpenScheduling()

	assert.Equal(t, []string{cfg.SchedulingURL}, launcher.URLs())
	require.Eventually(t, func() bool { return api.Checks() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, k.Status().Polling)
	assert.False(t, k.Status().CanConfirm)

	err = k.Confirm(context.Background())
	assert.True(t, domain.IsWarning(err))
	assert.Equal(t, "Agendamento ainda não encontrado.", err.Error())
	assert.True(t, k.Status().Polling, "a pending confirmation leaves the poll alone")

	api.mu.Lock()
	api.schedule = &domain.ScheduleCheck{HasSchedule: true, ScheduleTime: &at}
	api.confirm = &domain.StatusMessage{Status: domain.StatusOK}
	api.mu.Unlock()

	require.Eventually(t, func() bool { return !k.Status().Polling }, time.Second, time.Millisecond)
	st := k.Status()
	assert.True(t, st.CanConfirm)
	require.NotNil(t, st.ScheduleTime)
	assert.Equal(t, at, *st.ScheduleTime)

	next := domain.StageEngagement
	store.mu.Lock()
	store.nextStage = &next
	store.mu.Unlock()

	require.NoError(t, k.Confirm(context.Background()))
	assert.Equal(t, 1, store.Refreshes())
	assert.Equal(t, onboarding.ScreenEngagement, m.Screen())
}

func TestKickoff_ScheduleTimeChangesOnlyOnRecheck(t *testing.T) {
	first := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	api := &fakeAPI{schedule: &domain.ScheduleCheck{HasSchedule: true, ScheduleTime: &first}}
	m := newMachine(t, api, storeAt(domain.StageKickoff), &fakeLauncher{}, testConfig)

	k, err := m.EnterKickoff()
	require.NoError(t, err)
	assert.Equal(t, first, *k.Recheck(context.Background()).ScheduleTime)

	api.mu.Lock()
	api.schedule = &domain.ScheduleCheck{HasSchedule: true, ScheduleTime: &second}
	api.mu.Unlock()

	k.OpenScheduling()
	assert.False(t, k.Status().Polling)
	assert.Equal(t, first, *k.Status().ScheduleTime)

	assert.Equal(t, second, *k.Recheck(context.Background()).ScheduleTime)
}

func TestKickoff_EnteringAgainStopsPreviousPoll(t *testing.T) {
	api := &fakeAPI{schedule: &domain.ScheduleCheck{}}
	cfg := testConfig
	cfg.PollInterval = 2 * time.Millisecond
	m := newMachine(t, api, storeAt(domain.StageKickoff), &fakeLauncher{}, cfg)

	first, err := m.EnterKickoff()
	require.NoError(t, err)
	first.OpenScheduling()
	require.True(t, first.Status().Polling)

	second, err := m.EnterKickoff()
	require.NoError(t, err)
	assert.False(t, first.Status().Polling)

	first.OpenScheduling()
	assert.False(t, first.Status().Polling, "a left view does not restart")

	current, err := m.Kickoff()
	require.NoError(t, err)
	assert.Same(t, second, current)
}

func TestKickoff_LeavingScreenStopsPoll(t *testing.T) {
	api := &fakeAPI{schedule: &domain.ScheduleCheck{}}
	cfg := testConfig
	cfg.PollInterval = 2 * time.Millisecond
	store := storeAt(domain.StageKickoff)
	m := newMachine(t, api, store, &fakeLauncher{}, cfg)

	k, err := m.EnterKickoff()
	require.NoError(t, err)
	k.OpenScheduling()

	m.Observe(session.State{})

	assert.False(t, k.Status().Polling)
	checks := api.Checks()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, checks, api.Checks())
}

func trainingWith(modules ...domain.TrainingModule) *domain.TrainingOverview {
	return &domain.TrainingOverview{TotalModules: len(modules), Modules: modules}
}

func TestEngagement_ConfirmRejectedLocallyWithoutOverview(t *testing.T) {
	api := &fakeAPI{}
	m := newMachine(t, api, storeAt(domain.StageEngagement), &fakeLauncher{}, testConfig)

	e, err := m.Engagement()
	require.NoError(t, err)

	err = e.ConfirmContract(context.Background())

	var terr *domain.ErrTrainingIncomplete
	require.ErrorAs(t, err, &terr)
	assert.Zero(t, api.stage2)
}

func TestEngagement_TrainingGatesContract(t *testing.T) {
	api := &fakeAPI{overview: trainingWith(
		domain.TrainingModule{ID: 1, Title: "Abertura", IsCompleted: true},
		domain.TrainingModule{ID: 2, Title: "Objeções"},
		domain.TrainingModule{ID: 3, Title: "Avançado", IsLocked: true},
	)}
	store := storeAt(domain.StageEngagement)
	launcher := &fakeLauncher{}
	m := newMachine(t, api, store, launcher, testConfig)

	e, err := m.Engagement()
	require.NoError(t, err)

	st, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.CanSignContract)
	require.Len(t, st.Pending, 1)
	assert.Equal(t, "Objeções", st.Pending[0].Title)

	var terr *domain.ErrTrainingIncomplete
	require.ErrorAs(t, e.OpenContract(), &terr)
	assert.Equal(t, []string{"Objeções"}, terr.Pending)
	require.ErrorAs(t, e.ConfirmContract(context.Background()), &terr)
	assert.Zero(t, api.stage2)
	assert.Empty(t, launcher.URLs())

	_, err = e.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.overviews, "overview served from cache")

	_, err = e.CompleteModule(context.Background(), 2)
	require.NoError(t, err)

	st, err = e.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, api.overviews, "completion invalidates the overview")
	assert.True(t, st.CanSignContract)

	err = e.ConfirmContract(context.Background())
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr, "contract page not opened yet")

	require.NoError(t, e.OpenContract())
	assert.Equal(t, []string{testConfig.ContractURL}, launcher.URLs())

	next := domain.StageOperational
	store.nextStage = &next
	require.NoError(t, e.ConfirmContract(context.Background()))
	assert.Equal(t, 1, api.stage2)
	assert.Equal(t, 1, store.Refreshes())
	assert.Equal(t, onboarding.ScreenOperational, m.Screen())
}

func TestRequireStage_ProfileLoading(t *testing.T) {
	store := &fakeStore{state: session.State{User: &domain.User{ID: "u-1"}}}
	m := newMachine(t, &fakeAPI{}, store, &fakeLauncher{}, testConfig)

	_, err := m.EnterKickoff()
	assert.True(t, domain.IsWarning(err))

	store.state = session.State{}
	_, err = m.EnterKickoff()
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}
