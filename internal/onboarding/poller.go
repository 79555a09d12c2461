package onboarding

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"

	"go.uber.org/zap"
)

// Poll outcomes, as counted by the poll-tick metric.
const (
	OutcomePending   = "pending"
	OutcomeScheduled = "scheduled"
	OutcomeError     = "error"
)

// ScheduleChecker asks the backend whether the kickoff meeting was booked.
type ScheduleChecker func(ctx context.Context) (*domain.ScheduleCheck, error)

// Poller checks the schedule on a fixed interval until a schedule is
// reported or it is stopped. At most one loop runs per Poller.
type Poller struct {
	check    ScheduleChecker
	interval time.Duration
	record   func(outcome string)
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	last    *domain.ScheduleCheck
	lastErr error
}

// NewPoller creates a stopped poller. record may be nil.
func NewPoller(check ScheduleChecker, interval time.Duration, record func(outcome string), logger *zap.Logger) *Poller {
	if record == nil {
		record = func(string) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{check: check, interval: interval, record: record, logger: logger}
}

// Start begins polling. It does nothing when already running or when a
// schedule was already reported.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || (p.last != nil && p.last.HasSchedule) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go p.loop(ctx, cancel, done)
}

func (p *Poller) loop(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !p.Tick(ctx) {
				continue
			}
			p.mu.Lock()
			if p.done == done {
				p.cancel, p.done = nil, nil
			}
			p.mu.Unlock()
			cancel()
			return
		}
	}
}

// Stop cancels the loop without waiting for it. The returned channel is
// closed once the loop has exited; it may be called from inside a check, in
// which case the caller must not wait on the channel.
func (p *Poller) Stop() <-chan struct{} {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return closedCh
	}
	cancel()
	return done
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Tick performs one check and reports whether a schedule exists.
func (p *Poller) Tick(ctx context.Context) bool {
	sc, err := p.check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		p.record(OutcomeError)
		p.logger.Warn("schedule poll failed", zap.Error(err))
		return false
	}

	p.mu.Lock()
	p.last = sc
	p.lastErr = nil
	p.mu.Unlock()

	if sc.HasSchedule {
		p.record(OutcomeScheduled)
		return true
	}
	p.record(OutcomePending)
	return false
}

// Last returns the most recent check result and the error of the latest
// failed tick, if the failure came after it.
func (p *Poller) Last() (*domain.ScheduleCheck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil, p.lastErr
	}
	cp := *p.last
	return &cp, p.lastErr
}
