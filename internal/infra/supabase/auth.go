package supabase

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/infra/resilience"
	"github.com/boddenberg/seal-console/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// IdentityProvider implementation
// ============================================================

// SignIn exchanges e-mail and password for a session.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp tokenResponse
	creds := domain.Credentials{Email: email, Password: password}
	if err := a.doAuth(ctx, "token?grant_type=password", "", creds, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &domain.ErrRemote{Status: 502, Message: "Resposta de login sem token"}
	}

	s := resp.toSession(a.timeNow())
	a.setSession(s)
	a.logger.Info("operator signed in", zap.String("user_id", s.UserID))
	a.emit(domain.AuthEventSignedIn, s)
	return copySession(s), nil
}

// SignUp registers a new operator. When the project requires e-mail
// confirmation GoTrue answers with the user only, and no session is created.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*domain.User, *domain.Session, error) {
	var resp struct {
		tokenResponse
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	creds := domain.Credentials{Email: email, Password: password}
	if err := a.doAuth(ctx, "signup", "", creds, &resp); err != nil {
		return nil, nil, err
	}

	if resp.AccessToken != "" {
		s := resp.toSession(a.timeNow())
		a.setSession(s)
		a.logger.Info("operator signed up", zap.String("user_id", s.UserID))
		a.emit(domain.AuthEventSignedIn, s)
		user := s.User
		return &user, copySession(s), nil
	}

	user := &domain.User{ID: resp.ID, Email: resp.Email}
	if resp.User != nil {
		user = &domain.User{ID: resp.User.ID, Email: resp.User.Email}
	}
	a.logger.Info("operator signed up, confirmation pending", zap.String("user_id", user.ID))
	return user, nil, nil
}

// SignOut drops the local session and revokes it remotely. The local session
// is gone even when the remote call fails; that error is still returned.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()

	a.setSession(nil)
	a.emit(domain.AuthEventSignedOut, nil)

	if s == nil {
		return nil
	}
	if err := a.doAuth(ctx, "logout", s.AccessToken, nil, nil); err != nil {
		a.logger.Warn("supabase: remote sign-out failed", zap.Error(err))
		return err
	}
	return nil
}

// CurrentSession returns the live session, loading it from the session file
// on first use. An expired session is refreshed, or dropped when it cannot be.
func (a *Auth) CurrentSession(ctx context.Context) (*domain.Session, error) {
	a.mu.Lock()
	if !a.loaded {
		a.loaded = true
		stored, err := a.file.Load()
		if err != nil {
			a.logger.Warn("supabase: ignoring unreadable session file", zap.Error(err))
		}
		if stored != nil {
			a.session = stored
			if !stored.Expired(a.now()) {
				a.scheduleLocked(stored)
			}
		}
	}
	s := a.session
	now := a.now()
	a.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !s.Expired(now) {
		return copySession(s), nil
	}

	if s.RefreshToken == "" {
		a.expire(s)
		return nil, nil
	}
	refreshed, err := a.refresh(ctx, s)
	switch {
	case err == nil:
		return copySession(refreshed), nil
	case errors.Is(err, errSuperseded):
		a.mu.Lock()
		defer a.mu.Unlock()
		return copySession(a.session), nil
	case resilience.IsOutage(err):
		return nil, err
	default:
		a.expire(s)
		return nil, nil
	}
}

// OnAuthStateChange registers fn for every session change.
func (a *Auth) OnAuthStateChange(fn port.AuthStateListener) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Refresh renews the current session now.
func (a *Auth) Refresh(ctx context.Context) (*domain.Session, error) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil || s.RefreshToken == "" {
		return nil, domain.ErrUnauthenticated
	}
	refreshed, err := a.refresh(ctx, s)
	if err != nil {
		return nil, err
	}
	return copySession(refreshed), nil
}

// Close stops the refresh timer.
func (a *Auth) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// errSuperseded means the session changed while a refresh was in flight.
var errSuperseded = errors.New("session changed during refresh")

// refresh exchanges old's refresh token. The result is discarded when the
// session was replaced or cleared in the meantime.
func (a *Auth) refresh(ctx context.Context, old *domain.Session) (*domain.Session, error) {
	var resp tokenResponse
	body := map[string]string{"refresh_token": old.RefreshToken}
	if err := a.doAuth(ctx, "token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &domain.ErrRemote{Status: 502, Message: "Resposta de refresh sem token"}
	}

	s := resp.toSession(a.timeNow())
	if s.UserID == "" {
		s.User = old.User
		s.UserID = old.UserID
	}

	a.mu.Lock()
	if a.session == nil || a.session.RefreshToken != old.RefreshToken {
		a.mu.Unlock()
		return nil, errSuperseded
	}
	a.session = s
	a.scheduleLocked(s)
	a.mu.Unlock()

	a.persist(s)
	a.logger.Debug("session refreshed", zap.String("user_id", s.UserID), zap.Time("expires_at", s.ExpiresAt))
	a.emit(domain.AuthEventTokenRefreshed, s)
	return s, nil
}

func (a *Auth) onRefreshTimer() {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil || s.RefreshToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := a.refresh(ctx, s)
	switch {
	case err == nil, errors.Is(err, errSuperseded):
		return
	case resilience.IsOutage(err) && !s.Expired(a.timeNow()):
		a.logger.Warn("supabase: token refresh failed, retrying", zap.Error(err))
		a.mu.Lock()
		if a.session == s {
			a.timer = time.AfterFunc(refreshRetry, a.onRefreshTimer)
		}
		a.mu.Unlock()
	default:
		a.logger.Warn("supabase: token refresh failed, signing out", zap.Error(err))
		a.expire(s)
	}
}

// expire clears s if it is still the current session and reports SIGNED_OUT.
func (a *Auth) expire(s *domain.Session) {
	a.mu.Lock()
	current := a.session == s
	a.mu.Unlock()
	if !current {
		return
	}
	a.setSession(nil)
	a.emit(domain.AuthEventSignedOut, nil)
}

func (a *Auth) setSession(s *domain.Session) {
	a.mu.Lock()
	a.session = s
	a.loaded = true
	a.scheduleLocked(s)
	a.mu.Unlock()

	a.persist(s)
}

func (a *Auth) persist(s *domain.Session) {
	if err := a.file.Save(s); err != nil {
		a.logger.Warn("supabase: failed to persist session", zap.Error(err))
	}
}

// scheduleLocked arms the refresh timer for s. Caller holds a.mu.
func (a *Auth) scheduleLocked(s *domain.Session) {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if s == nil || s.RefreshToken == "" || s.ExpiresAt.IsZero() {
		return
	}
	d := s.ExpiresAt.Sub(a.now()) - refreshMargin
	if d < 0 {
		d = 0
	}
	a.timer = time.AfterFunc(d, a.onRefreshTimer)
}

func (a *Auth) emit(event domain.AuthEvent, s *domain.Session) {
	a.mu.Lock()
	listeners := make([]port.AuthStateListener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(event, copySession(s))
	}
}

func (a *Auth) timeNow() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now()
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
