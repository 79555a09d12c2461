// Package session owns the operator's authentication session and profile.
// It is the single source of truth consulted by the route guard and the
// onboarding machine, and the token source of the remote gateway.
package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("session")

// ProfileFetcher loads the signed-in operator's profile.
type ProfileFetcher interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
}

// State is a snapshot of the store. It is a copy; mutating it has no effect.
type State struct {
	User    *domain.User    `json:"user"`
	Session *domain.Session `json:"-"`
	Profile *domain.Profile `json:"profile"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

// Store holds the session state behind a mutex and hands out copies.
type Store struct {
	provider port.IdentityProvider
	profiles ProfileFetcher
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       State
	gen         uint64
	initialized bool
	unsubscribe func()
	listeners   map[int]func(State)
	nextID      int
}

// NewStore creates a store in the loading state. Call Initialize once the
// process is ready to talk to the identity provider.
func NewStore(provider port.IdentityProvider, profiles ProfileFetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		provider:  provider,
		profiles:  profiles,
		logger:    logger,
		now:       time.Now,
		state:     State{Loading: true},
		listeners: make(map[int]func(State)),
	}
}

// SetProfileFetcher wires the profile source after construction. The gateway
// needs the store as its token source, so one of the two is built late.
func (s *Store) SetProfileFetcher(p ProfileFetcher) {
	s.mu.Lock()
	s.profiles = p
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Initialize reads any existing session, fetches its profile and subscribes
// to provider changes. Calling it again is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.state.Loading = true
	s.state.Error = ""
	s.unsubscribe = s.provider.OnAuthStateChange(s.onAuthStateChange)
	s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "Session.Initialize")
	defer span.End()

	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Error("session: failed to read current session", zap.Error(err))
		s.update(func(st *State) {
			st.Error = "Erro ao inicializar autenticação"
			st.Loading = false
		})
		return err
	}

	if sess != nil {
		gen, changed := s.adopt(sess)
		if changed || s.Snapshot().Profile == nil {
			s.fetchProfile(ctx, gen)
		}
	}
	s.update(func(st *State) { st.Loading = false })
	return nil
}

// SignIn authenticates with e-mail and password and loads the profile.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "Session.SignIn")
	defer span.End()

	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})

	sess, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.update(func(st *State) {
			st.Error = domain.UserMessage(err, "Erro ao fazer login")
			st.Loading = false
		})
		return err
	}

	gen, changed := s.adopt(sess)
	if changed || s.Snapshot().Profile == nil {
		s.fetchProfile(ctx, gen)
	}
	s.update(func(st *State) { st.Loading = false })
	return nil
}

// SignUp registers a new operator. When the provider answers without a
// session (e-mail confirmation pending) the store stays signed out and the
// returned user is informational.
func (s *Store) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Session.SignUp")
	defer span.End()

	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})

	user, sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		s.update(func(st *State) {
			st.Error = domain.UserMessage(err, "Erro ao criar conta")
			st.Loading = false
		})
		return nil, err
	}

	if sess != nil {
		s.adopt(sess)
	}
	s.update(func(st *State) { st.Loading = false })
	return user, nil
}

// SignOut clears user, session and profile. The local state is cleared even
// when the provider fails; the provider error is returned and recorded.
func (s *Store) SignOut(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session.SignOut")
	defer span.End()

	s.update(func(st *State) { st.Loading = true })

	err := s.provider.SignOut(ctx)
	if err != nil {
		s.logger.Warn("session: provider sign-out failed", zap.Error(err))
	}

	s.mu.Lock()
	s.gen++
	s.state.User = nil
	s.state.Session = nil
	s.state.Profile = nil
	s.state.Loading = false
	s.state.Error = ""
	if err != nil {
		s.state.Error = domain.UserMessage(err, "Erro ao sair")
	}
	s.mu.Unlock()
	s.notify()

	return err
}

// RefreshProfile re-fetches the profile. Failures are logged, never returned.
func (s *Store) RefreshProfile(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	signedIn := s.state.Session != nil
	s.mu.Unlock()
	if !signedIn {
		return
	}
	s.fetchProfile(ctx, gen)
}

// SetProfile installs a profile the server already returned, e.g. after an edit.
// Ignored when no one is signed in.
func (s *Store) SetProfile(p *domain.Profile) {
	s.mu.Lock()
	if s.state.Session == nil {
		s.mu.Unlock()
		return
	}
	s.state.Profile = copyProfile(p)
	s.mu.Unlock()
	s.notify()
}

// AccessToken returns the bearer token for remote calls. An expired session
// is renewed through the provider; with no usable session it returns
// domain.ErrUnauthenticated.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	sess := s.state.Session
	now := s.now()
	s.mu.Unlock()

	if sess == nil {
		return "", domain.ErrUnauthenticated
	}
	if !sess.Expired(now) {
		return sess.AccessToken, nil
	}

	fresh, err := s.provider.CurrentSession(ctx)
	if err != nil || fresh == nil || fresh.Expired(now) {
		return "", domain.ErrUnauthenticated
	}
	return fresh.AccessToken, nil
}

// Subscribe registers fn for every state change and returns its cancel func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close drops the provider subscription.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// onAuthStateChange replaces user and session, then re-fetches or clears the profile.
func (s *Store) onAuthStateChange(event domain.AuthEvent, sess *domain.Session) {
	s.logger.Debug("session: provider notification", zap.String("event", string(event)))

	gen, changed := s.adopt(sess)
	if sess != nil && changed {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.fetchProfile(ctx, gen)
	}
}

// adopt installs sess. When it differs from the current session the
// generation advances, so profile fetches started for the old one are
// discarded; the profile is cleared when the user changes or signs out.
func (s *Store) adopt(sess *domain.Session) (gen uint64, changed bool) {
	s.mu.Lock()
	cur := s.state.Session
	changed = (cur == nil) != (sess == nil) || (cur != nil && cur.AccessToken != sess.AccessToken)
	if changed {
		s.gen++
		if sess == nil || cur == nil || cur.UserID != sess.UserID {
			s.state.Profile = nil
		}
		if sess == nil {
			s.state.User = nil
			s.state.Session = nil
		} else {
			cp := *sess
			user := cp.User
			if user.ID == "" {
				user.ID = cp.UserID
			}
			s.state.Session = &cp
			s.state.User = &user
		}
	}
	gen = s.gen
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return gen, changed
}

// fetchProfile loads the profile and installs it only if the session has not
// changed since generation gen.
func (s *Store) fetchProfile(ctx context.Context, gen uint64) {
	s.mu.Lock()
	profiles := s.profiles
	s.mu.Unlock()
	if profiles == nil {
		return
	}

	p, err := profiles.GetProfile(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("session: discarding profile fetched for a previous session")
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("session: failed to fetch profile", zap.Error(err))
		return
	}
	s.state.Profile = p
	s.mu.Unlock()
	s.notify()
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	snap := s.copyLocked()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Store) copyLocked() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	if st.Session != nil {
		sess := *st.Session
		st.Session = &sess
	}
	st.Profile = copyProfile(st.Profile)
	return st
}

func copyProfile(p *domain.Profile) *domain.Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.DimensionalScores = maps.Clone(p.DimensionalScores)
	return &cp
}
