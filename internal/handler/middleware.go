package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/session"

	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "userID"

// SessionMiddleware injects the signed-in operator's ID into the request
// context and the active span. Routes that need a session are guarded
// separately.
func SessionMiddleware(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := store.Snapshot()
			if st.User == nil {
				next.ServeHTTP(w, r)
				return
			}
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("user.id", st.User.ID))
			observability.Annotate(r.Context(), zap.String("user_id", st.User.ID))
			ctx := context.WithValue(r.Context(), userIDKey, st.User.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the operator ID injected by SessionMiddleware.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// corsMiddleware lets a browser renderer on another origin call the console.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Location", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
