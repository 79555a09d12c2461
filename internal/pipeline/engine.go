// Package pipeline keeps the operator's lead board in sync with the remote
// API. Reads go through a per-user query cache; every successful mutation
// invalidates that cache and refetches, so the board only ever shows what
// the server last returned.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/infra/resilience"
	"github.com/boddenberg/seal-console/internal/port"
	"github.com/boddenberg/seal-console/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("pipeline")

// Mutation channels, as reported by LastError.
const (
	OpCreate = "create"
	OpMove   = "move"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Identity reports who is signed in.
type Identity interface {
	Snapshot() session.State
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics records cache and mutation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is the pipeline cache and mutation engine.
type Engine struct {
	api      port.PipelineAPI
	identity Identity
	cache    port.Cache[*Collection]
	metrics  *observability.Metrics
	logger   *zap.Logger

	fetches  singleflight.Group
	creating *resilience.Bulkhead

	mu       sync.Mutex
	user     string
	lastErr  map[string]error
	dragging *int64
}

// NewEngine creates an Engine.
func NewEngine(api port.PipelineAPI, identity Identity, cache port.Cache[*Collection], logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		api:      api,
		identity: identity,
		cache:    cache,
		logger:   logger,
		creating: resilience.NewBulkhead(1),
		lastErr:  make(map[string]error),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func boardKey(userID string) string {
	return "board:" + userID
}

func (e *Engine) currentUser() (string, error) {
	st := e.identity.Snapshot()
	if st.User == nil {
		return "", domain.ErrUnauthenticated
	}
	return st.User.ID, nil
}

// Observe drops the previous user's board when the session changes hands.
// Wire it to the session store's Subscribe.
func (e *Engine) Observe(st session.State) {
	uid := ""
	if st.User != nil {
		uid = st.User.ID
	}

	e.mu.Lock()
	prev := e.user
	e.user = uid
	if prev != uid {
		e.lastErr = make(map[string]error)
		e.dragging = nil
	}
	e.mu.Unlock()

	if prev != "" && prev != uid {
		e.cache.Delete(boardKey(prev))
		e.fetches.Forget(boardKey(prev))
		e.logger.Debug("dropped board of previous session", zap.String("user_id", prev))
	}
}

// Enter loads a fresh board, ignoring the cache.
func (e *Engine) Enter(ctx context.Context) (*domain.Board, error) {
	uid, err := e.currentUser()
	if err != nil {
		return nil, err
	}
	c, err := e.refetch(ctx, uid)
	if err != nil {
		return nil, err
	}
	return c.Project(), nil
}

// Board returns the cached board, fetching it on a miss.
func (e *Engine) Board(ctx context.Context) (*domain.Board, error) {
	c, err := e.collection(ctx)
	if err != nil {
		return nil, err
	}
	return c.Project(), nil
}

func (e *Engine) collection(ctx context.Context) (*Collection, error) {
	uid, err := e.currentUser()
	if err != nil {
		return nil, err
	}
	if c, ok := e.cache.Get(boardKey(uid)); ok {
		e.cacheHit()
		return c, nil
	}
	e.cacheMiss()
	return e.fetch(ctx, uid)
}

// fetch loads the board once for all concurrent callers.
func (e *Engine) fetch(ctx context.Context, uid string) (*Collection, error) {
	key := boardKey(uid)
	v, err, _ := e.fetches.Do(key, func() (any, error) {
		ctx, span := tracer.Start(ctx, "Pipeline.FetchBoard")
		defer span.End()

		payload, err := e.api.GetBoard(ctx)
		if err != nil {
			return nil, err
		}
		if e.metrics != nil {
			e.metrics.IncrBoardRefetch()
		}
		c := NewCollection(payload)
		if owner, err := e.currentUser(); err == nil && owner == uid {
			e.cache.Set(key, c)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Collection), nil
}

// refetch invalidates the board and loads it again. A fetch already in
// flight is not joined: it may predate the mutation.
func (e *Engine) refetch(ctx context.Context, uid string) (*Collection, error) {
	key := boardKey(uid)
	e.cache.Delete(key)
	e.fetches.Forget(key)
	return e.fetch(ctx, uid)
}

// afterMutation sequences the board refresh after a successful mutation.
// A failed refetch leaves the cache empty so the next read retries.
func (e *Engine) afterMutation(ctx context.Context, op, uid string) {
	e.setLastErr(op, nil)
	e.mutation(op, "ok")
	if _, err := e.refetch(ctx, uid); err != nil {
		e.logger.Warn("board refetch after mutation failed", zap.String("operation", op), zap.Error(err))
	}
}

func (e *Engine) failed(op string, err error) error {
	e.setLastErr(op, err)
	e.mutation(op, "error")
	e.logger.Warn("pipeline mutation failed", zap.String("operation", op), zap.Error(err))
	return err
}

// CreateLead adds a lead. Only one create may be in flight at a time.
func (e *Engine) CreateLead(ctx context.Context, in *domain.CreateLeadInput) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.CreateLead")
	defer span.End()

	uid, err := e.currentUser()
	if err != nil {
		return nil, err
	}
	input := *in
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		e.mutation(OpCreate, "rejected")
		return nil, &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	}
	if input.Status != "" && !input.Status.Valid() {
		e.mutation(OpCreate, "rejected")
		return nil, invalidStatus(input.Status)
	}

	if !e.creating.TryAcquire() {
		e.mutation(OpCreate, "busy")
		return nil, &domain.ErrBusy{Operation: OpCreate}
	}
	defer e.creating.Release()

	ctx = context.WithoutCancel(ctx)
	lead, err := e.api.CreateLead(ctx, &input)
	if err != nil {
		return nil, e.failed(OpCreate, err)
	}
	e.afterMutation(ctx, OpCreate, uid)
	return lead, nil
}

// MoveLead changes a lead's bucket. Moving onto the current bucket is a
// no-op and sends nothing. A failure is kept on the move channel; the board
// stays at the last successful fetch.
func (e *Engine) MoveLead(ctx context.Context, id int64, status domain.LeadStatus) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.MoveLead")
	defer span.End()
	span.SetAttributes(attribute.Int64("lead.id", id), attribute.String("lead.status", string(status)))

	if !status.Valid() {
		e.mutation(OpMove, "rejected")
		return nil, invalidStatus(status)
	}
	uid, err := e.currentUser()
	if err != nil {
		return nil, err
	}
	c, err := e.collection(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := c.Get(id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: strconv.FormatInt(id, 10)}
	}
	if current.Status == status {
		e.mutation(OpMove, "noop")
		return &current, nil
	}

	ctx = context.WithoutCancel(ctx)
	lead, err := e.api.MoveLead(ctx, id, status)
	if err != nil {
		return nil, e.failed(OpMove, err)
	}
	e.afterMutation(ctx, OpMove, uid)
	return lead, nil
}

// UpdateLead edits a lead's fields.
func (e *Engine) UpdateLead(ctx context.Context, id int64, patch *domain.LeadPatch) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.UpdateLead")
	defer span.End()

	uid, err := e.currentUser()
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		e.mutation(OpUpdate, "rejected")
		return nil, &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		e.mutation(OpUpdate, "rejected")
		return nil, invalidStatus(*patch.Status)
	}

	ctx = context.WithoutCancel(ctx)
	lead, err := e.api.UpdateLead(ctx, id, patch)
	if err != nil {
		return nil, e.failed(OpUpdate, err)
	}
	e.afterMutation(ctx, OpUpdate, uid)
	return lead, nil
}

// DeleteLead removes a lead.
func (e *Engine) DeleteLead(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "Pipeline.DeleteLead")
	defer span.End()

	uid, err := e.currentUser()
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	if err := e.api.DeleteLead(ctx, id); err != nil {
		return e.failed(OpDelete, err)
	}
	e.afterMutation(ctx, OpDelete, uid)
	return nil
}

// ListLeads returns leads straight from the server, optionally filtered by
// status. It does not touch the board cache.
func (e *Engine) ListLeads(ctx context.Context, status domain.LeadStatus) ([]domain.Lead, error) {
	if status != "" && !status.Valid() {
		return nil, invalidStatus(status)
	}
	if _, err := e.currentUser(); err != nil {
		return nil, err
	}
	return e.api.ListLeads(ctx, status)
}

// LastError returns the last failure on a mutation channel, cleared by the
// next success on that channel.
func (e *Engine) LastError(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr[op]
}

func (e *Engine) setLastErr(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.lastErr, op)
		return
	}
	e.lastErr[op] = err
}

// BeginDrag marks a lead as being dragged. Purely visual.
func (e *Engine) BeginDrag(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dragging = &id
}

// Dragging returns the lead being dragged.
func (e *Engine) Dragging() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dragging == nil {
		return 0, false
	}
	return *e.dragging, true
}

// Drop moves the dragged lead to status. The drag marker is cleared once
// the move itself completes, whatever its outcome.
func (e *Engine) Drop(ctx context.Context, status domain.LeadStatus) (*domain.Lead, error) {
	id, ok := e.Dragging()
	if !ok {
		return nil, &domain.ErrValidation{Field: "drag", Message: "Nenhum lead sendo arrastado"}
	}
	defer func() {
		e.mu.Lock()
		if e.dragging != nil && *e.dragging == id {
			e.dragging = nil
		}
		e.mu.Unlock()
	}()
	return e.MoveLead(ctx, id, status)
}

func invalidStatus(s domain.LeadStatus) error {
	return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("Status inválido: %s", s)}
}

func (e *Engine) cacheHit() {
	if e.metrics != nil {
		e.metrics.IncrCacheHit("board")
	}
}

func (e *Engine) cacheMiss() {
	if e.metrics != nil {
		e.metrics.IncrCacheMiss("board")
	}
}

func (e *Engine) mutation(op, result string) {
	if e.metrics != nil {
		e.metrics.IncrMutation(op, result)
	}
}
