package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a structured zap logger.
// Always uses production base (no stacktraces on Warn).
// debug level → colorized console; otherwise → compact JSON at the parsed level.
func NewLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	if lvl == zapcore.DebugLevel {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger
}

type annotationsKey struct{}

// requestAnnotations collects fields that handlers deeper in the chain want
// on the request log line, e.g. the operator id or the guard decision.
type requestAnnotations struct {
	mu     sync.Mutex
	fields []zap.Field
}

// Annotate adds fields to the request log line written by
// ZapLoggerMiddleware. Outside that middleware it does nothing.
func Annotate(ctx context.Context, fields ...zap.Field) {
	a, ok := ctx.Value(annotationsKey{}).(*requestAnnotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.fields = append(a.fields, fields...)
	a.mu.Unlock()
}

// ZapLoggerMiddleware writes one log line per console request. The 202
// loading answer and guard redirects log at Debug, 4xx at Warn, 5xx at Error.
func ZapLoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			notes := &requestAnnotations{}
			r = r.WithContext(context.WithValue(r.Context(), annotationsKey{}, notes))

			defer func() {
				status := ww.Status()
				route := r.URL.Path
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}

				notes.mu.Lock()
				fields := make([]zap.Field, 0, 6+len(notes.fields))
				fields = append(fields,
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
				fields = append(fields, notes.fields...)
				notes.mu.Unlock()

				switch {
				case status >= 500:
					logger.Error("console request", fields...)
				case status >= 400:
					logger.Warn("console request", fields...)
				case status == http.StatusAccepted, status == http.StatusTemporaryRedirect:
					logger.Debug("console request", fields...)
				default:
					logger.Info("console request", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TracingMiddleware extracts trace context from incoming requests.
func TracingMiddleware(next http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		propagator = propagation.TraceContext{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
