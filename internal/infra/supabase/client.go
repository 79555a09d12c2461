// Package supabase provides the identity provider backed by Supabase Auth (GoTrue).
// It signs operators in and out, keeps the session refreshed before expiry,
// persists it to a local file and notifies listeners of every change.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/infra/resilience"
	"github.com/boddenberg/seal-console/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

const (
	// refreshMargin is how long before expiry the access token is renewed.
	refreshMargin = 60 * time.Second
	// refreshRetry is the delay before retrying a refresh that failed on transport.
	refreshRetry = 10 * time.Second
)

// Auth talks to the GoTrue REST API. It implements port.IdentityProvider.
type Auth struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	cb         *gobreaker.CircuitBreaker
	file       *SessionFile
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	session   *domain.Session
	loaded    bool
	timer     *time.Timer
	listeners map[int]port.AuthStateListener
	nextID    int
}

// NewAuth creates the identity provider. file may be nil to keep the session in memory only.
func NewAuth(httpClient *http.Client, baseURL, anonKey string, cb *gobreaker.CircuitBreaker, file *SessionFile, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auth{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		cb:         cb,
		file:       file,
		logger:     logger,
		now:        time.Now,
		listeners:  make(map[int]port.AuthStateListener),
	}
}

// SetClock replaces the time source. Tests only.
func (a *Auth) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// tokenResponse is the GoTrue session payload.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *authUser `json:"user"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// accessClaims are the claims read from a GoTrue access token.
// The signature is not checked here; the remote API verifies it.
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// toSession builds a domain session, filling gaps from the token's claims.
func (r *tokenResponse) toSession(now time.Time) *domain.Session {
	s := &domain.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	if r.User != nil {
		s.User = domain.User{ID: r.User.ID, Email: r.User.Email}
	}

	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}

	if claims, err := parseClaims(r.AccessToken); err == nil {
		if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
		if s.User.ID == "" {
			s.User.ID = claims.Subject
		}
		if s.User.Email == "" {
			s.User.Email = claims.Email
		}
	}
	s.UserID = s.User.ID
	return s
}

func parseClaims(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// doAuth posts body to a GoTrue endpoint and decodes a 2xx response into out.
func (a *Auth) doAuth(ctx context.Context, path, bearer string, body, out any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Auth")
	defer span.End()
	span.SetAttributes(attribute.String("auth.path", path))

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	_, err := a.cb.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/auth/v1/%s", a.baseURL, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}

		req.Header.Set("apikey", a.anonKey)
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			a.logger.Error("supabase: auth request failed",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			a.logger.Warn("supabase: auth non-2xx",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
			)
			return nil, authError(resp.StatusCode, respBody)
		}

		if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return nil, fmt.Errorf("decode auth response: %w", err)
			}
		}
		return nil, nil
	})

	if resilience.IsBreakerOpen(err) {
		return &domain.ErrCircuitOpen{Service: "supabase/auth"}
	}
	return err
}

// authError reads GoTrue's error shapes. The message comes from
// error_description, then msg, then message, then error.
func authError(status int, body []byte) *domain.ErrRemote {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &domain.ErrRemote{Status: status, Message: "Erro desconhecido"}
	}
	for _, msg := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
		if msg != "" {
			return &domain.ErrRemote{Status: status, Message: msg}
		}
	}
	return &domain.ErrRemote{Status: status, Message: fmt.Sprintf("Erro %d", status)}
}
