// Package gateway is the typed client of the SEAL remote API.
// Every call carries the operator's bearer token, goes through a circuit
// breaker, and turns non-2xx responses into *domain.ErrRemote.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/infra/resilience"
	"github.com/boddenberg/seal-console/internal/port"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gateway")

const serviceName = "remote-api"

// Fallback messages when the error body carries nothing usable.
const (
	msgUnknown = "Erro desconhecido"
)

// Client calls the remote API on behalf of the signed-in operator.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     port.TokenSource
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	devMode    bool
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithDevMode enables the development-only simulation endpoints.
func WithDevMode(enabled bool) Option {
	return func(c *Client) { c.devMode = enabled }
}

// WithMetrics records call durations and errors.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a gateway client. cb should be built with resilience.IsOutage
// so remote rejections do not trip it.
func NewClient(httpClient *http.Client, baseURL string, tokens port.TokenSource, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DevMode reports whether the simulation endpoints are enabled.
func (c *Client) DevMode() bool {
	return c.devMode
}

// Health reports the breaker state as a dependency health entry.
func (c *Client) Health() domain.ServiceHealth {
	status := "healthy"
	switch c.cb.State() {
	case gobreaker.StateOpen:
		status = "unhealthy"
	case gobreaker.StateHalfOpen:
		status = "degraded"
	}
	return domain.ServiceHealth{
		Name:        serviceName,
		Status:      status,
		Detail:      "circuit " + c.cb.State().String(),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
}

// do performs one logical call: method+path with an optional JSON body,
// decoding a 2xx response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := tracer.Start(ctx, "Gateway."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("api.path", path),
	)

	start := time.Now()
	err := c.execute(ctx, method, path, body, out)
	if c.metrics != nil {
		c.metrics.RecordGatewayCall(op, time.Since(start))
	}
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.recordError(op, err)
	return err
}

func (c *Client) execute(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil || token == "" {
		return domain.ErrUnauthenticated
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
	}

	cfg := c.cfg
	if method != http.MethodGet {
		cfg.MaxRetries = 0
	}
	requestID := uuid.NewString()

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, cfg, func() error {
			return c.attempt(ctx, method, path, requestID, token, payload, out)
		})
	})
	if err == nil {
		return nil
	}

	if resilience.IsBreakerOpen(err) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	var remote *domain.ErrRemote
	if errors.As(err, &remote) {
		return remote
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

// attempt sends the request once. Errors that must not be retried are
// wrapped with resilience.Permanent.
func (c *Client) attempt(ctx context.Context, method, path, requestID, token string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return resilience.Permanent(err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("gateway: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remote := parseRemoteError(resp.StatusCode, respBody)
		c.logger.Debug("gateway: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID),
		)
		if resp.StatusCode >= http.StatusInternalServerError {
			return remote
		}
		return resilience.Permanent(remote)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s %s response: %w", method, path, err))
	}
	return nil
}

func (c *Client) recordError(op string, err error) {
	if c.metrics == nil {
		return
	}
	var (
		remote  *domain.ErrRemote
		circuit *domain.ErrCircuitOpen
	)
	kind := "transport"
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		kind = "unauthenticated"
	case errors.As(err, &remote):
		kind = "remote"
	case errors.As(err, &circuit):
		kind = "circuit_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = "canceled"
	}
	c.metrics.IncrGatewayError(op, kind)
}

// parseRemoteError reads the API's error body. The message comes from
// "detail", then "message", then "error". A "detail" list takes the first
// item's "msg".
func parseRemoteError(status int, body []byte) *domain.ErrRemote {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return &domain.ErrRemote{Status: status, Message: msgUnknown}
	}

	for _, key := range []string{"detail", "message", "error"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		if msg := messageFrom(raw); msg != "" {
			return &domain.ErrRemote{Status: status, Message: msg}
		}
	}
	return &domain.ErrRemote{Status: status, Message: fmt.Sprintf("Erro %d", status)}
}

func messageFrom(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}
