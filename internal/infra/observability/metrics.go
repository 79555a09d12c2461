package observability

import (
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the console.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	gatewayDuration *prometheus.HistogramVec
	gatewayErrors   *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	pollTicks       *prometheus.CounterVec
	boardRefetches  prometheus.Counter
	mutations       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// console metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_gateway_duration_seconds",
				Help:    "Duration of remote gateway calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		gatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_gateway_errors_total",
				Help: "Total failed remote gateway calls by operation and kind.",
			},
			[]string{"operation", "kind"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_cache_hits_total",
				Help: "Total query cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_cache_misses_total",
				Help: "Total query cache misses.",
			},
			[]string{"cache"},
		),
		pollTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_schedule_poll_ticks_total",
				Help: "Schedule poll ticks by outcome (pending, scheduled, error).",
			},
			[]string{"outcome"},
		),
		boardRefetches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_board_refetches_total",
				Help: "Board fetches from the remote API.",
			},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_pipeline_mutations_total",
				Help: "Pipeline mutations by operation and result.",
			},
			[]string{"operation", "result"},
		),
	}
}

// RecordGatewayCall records the duration of a remote call.
func (m *Metrics) RecordGatewayCall(operation string, d time.Duration) {
	m.gatewayDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrGatewayError increments the gateway error counter.
func (m *Metrics) IncrGatewayError(operation, kind string) {
	m.gatewayErrors.WithLabelValues(operation, kind).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrPollTick counts one schedule poll.
func (m *Metrics) IncrPollTick(outcome string) {
	m.pollTicks.WithLabelValues(outcome).Inc()
}

// IncrBoardRefetch counts one board fetch.
func (m *Metrics) IncrBoardRefetch() {
	m.boardRefetches.Inc()
}

// IncrMutation counts a pipeline mutation.
func (m *Metrics) IncrMutation(operation, result string) {
	m.mutations.WithLabelValues(operation, result).Inc()
}

// Snapshot returns the counters shown by GET /v1/diagnostics.
func (m *Metrics) Snapshot() *domain.Diagnostics {
	boardHits := getCounterValue(m.cacheHits, "board")
	boardMisses := getCounterValue(m.cacheMisses, "board")
	hitRate := float64(0)
	if boardHits+boardMisses > 0 {
		hitRate = boardHits / (boardHits + boardMisses)
	}

	refetches := &dto.Metric{}
	if err := m.boardRefetches.Write(refetches); err != nil || refetches.Counter == nil {
		refetches = &dto.Metric{Counter: &dto.Counter{}}
	}

	return &domain.Diagnostics{
		BoardRefetches:    int64(refetches.Counter.GetValue()),
		BoardCacheHitRate: hitRate,
		PollTicks: map[string]int64{
			"pending":   int64(getCounterValue(m.pollTicks, "pending")),
			"scheduled": int64(getCounterValue(m.pollTicks, "scheduled")),
			"error":     int64(getCounterValue(m.pollTicks, "error")),
		},
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
