package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/onboarding"
	"github.com/boddenberg/seal-console/internal/session"

	"go.uber.org/zap"
)

// ============================================================
// Session
// ============================================================

// sessionView is the session snapshot as served to a renderer. Tokens stay
// inside the console.
type sessionView struct {
	User    *domain.User      `json:"user"`
	Profile *domain.Profile   `json:"profile"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
	Screen  onboarding.Screen `json:"screen"`
}

func viewOf(st session.State) sessionView {
	return sessionView{
		User:    st.User,
		Profile: st.Profile,
		Loading: st.Loading,
		Error:   st.Error,
		Screen:  onboarding.Resolve(st),
	}
}

func readCredentials(r *http.Request) (*domain.Credentials, error) {
	var c domain.Credentials
	if err := decodeJSON(r, &c); err != nil {
		return nil, err
	}
	c.Email = strings.TrimSpace(c.Email)
	if c.Email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail é obrigatório"}
	}
	if c.Password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "Senha é obrigatória"}
	}
	return &c, nil
}

func signInHandler(store *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		creds, err := readCredentials(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := store.SignIn(ctx, creds.Email, creds.Password); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, viewOf(store.Snapshot()))
	}
}

func signUpHandler(store *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signup")
		defer span.End()

		creds, err := readCredentials(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user, err := store.SignUp(ctx, creds.Email, creds.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		st := store.Snapshot()
		writeJSON(w, http.StatusCreated, map[string]any{
			"user":                 user,
			"confirmation_pending": st.User == nil,
			"session":              viewOf(st),
		})
	}
}

func signOutHandler(store *session.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		// Local state is cleared whatever the provider says.
		if err := store.SignOut(ctx); err != nil {
			logger.Warn("remote sign-out failed", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, viewOf(store.Snapshot()))
	}
}

func meHandler(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, viewOf(store.Snapshot()))
	}
}
