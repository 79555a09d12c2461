package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/seal-console/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerMiddleware_CarriesAnnotations(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(zap.New(core)))
	r.Get("/v1/crm/leads/{leadId}", func(w http.ResponseWriter, r *http.Request) {
		observability.Annotate(r.Context(), zap.String("user_id", "u-1"), zap.String("guard", "render"))
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/crm/leads/7", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/v1/crm/leads/{leadId}", fields["route"])
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "render", fields["guard"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestZapLoggerMiddleware_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusAccepted, zapcore.DebugLevel},
		{http.StatusTemporaryRedirect, zapcore.DebugLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := observability.ZapLoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/me", nil))

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.level, logs.All()[0].Level)
			assert.Equal(t, "/v1/me", logs.All()[0].ContextMap()["route"])
		})
	}
}

func TestAnnotate_OutsideMiddlewareIsNoop(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.NotPanics(t, func() {
		observability.Annotate(req.Context(), zap.String("user_id", "u-1"))
	})
}
