package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedChecker replays results in order and repeats the last one.
type scriptedChecker struct {
	mu      sync.Mutex
	calls   int
	results []checkResult
}

type checkResult struct {
	sc  *domain.ScheduleCheck
	err error
}

func (s *scriptedChecker) check(context.Context) (*domain.ScheduleCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	r := s.results[i]
	return r.sc, r.err
}

func (s *scriptedChecker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) record(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

func (o *outcomeCounter) get(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[outcome]
}

func pending() checkResult {
	return checkResult{sc: &domain.ScheduleCheck{}}
}

func scheduled(at time.Time) checkResult {
	return checkResult{sc: &domain.ScheduleCheck{HasSchedule: true, ScheduleTime: &at}}
}

func TestPoller_TickRecordsOutcomes(t *testing.T) {
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	checker := &scriptedChecker{results: []checkResult{
		pending(),
		{err: errors.New("timeout")},
		scheduled(at),
	}}
	counter := &outcomeCounter{}
	p := NewPoller(checker.check, time.Hour, counter.record, zap.NewNop())

	assert.False(t, p.Tick(context.Background()))
	assert.False(t, p.Tick(context.Background()))

	last, err := p.Last()
	require.Error(t, err)
	require.NotNil(t, last)
	assert.False(t, last.HasSchedule)

	assert.True(t, p.Tick(context.Background()))
	last, err = p.Last()
	require.NoError(t, err)
	assert.True(t, last.HasSchedule)
	assert.Equal(t, at, *last.ScheduleTime)

	assert.Equal(t, 1, counter.get(OutcomePending))
	assert.Equal(t, 1, counter.get(OutcomeError))
	assert.Equal(t, 1, counter.get(OutcomeScheduled))
}

func TestPoller_StopsOnceScheduleReported(t *testing.T) {
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	checker := &scriptedChecker{results: []checkResult{pending(), pending(), scheduled(at)}}
	p := NewPoller(checker.check, 2*time.Millisecond, nil, zap.NewNop())

	p.Start()
	require.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)

	calls := checker.Calls()
	assert.Equal(t, 3, calls)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, checker.Calls(), "no ticks after the schedule is reported")

	last, _ := p.Last()
	require.NotNil(t, last)
	assert.Equal(t, at, *last.ScheduleTime)

	p.Start()
	assert.False(t, p.Running(), "a reported schedule is not polled again")
}

func TestPoller_StopCancelsLoop(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{pending()}}
	p := NewPoller(checker.check, 2*time.Millisecond, nil, zap.NewNop())

	p.Start()
	p.Start()
	require.Eventually(t, func() bool { return checker.Calls() >= 2 }, time.Second, time.Millisecond)

	<-p.Stop()
	assert.False(t, p.Running())

	calls := checker.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, checker.Calls())

	select {
	case <-p.Stop():
	default:
		t.Fatal("stopping an idle poller must report it as exited")
	}
}

func TestPoller_StopFromInsideCheckDoesNotBlock(t *testing.T) {
	var p *Poller
	returned := make(chan struct{}, 1)
	p = NewPoller(func(context.Context) (*domain.ScheduleCheck, error) {
		p.Stop()
		returned <- struct{}{}
		return &domain.ScheduleCheck{}, nil
	}, 2*time.Millisecond, nil, zap.NewNop())

	p.Start()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("check blocked on its own Stop")
	}
	require.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)
}
