// Package guard decides whether a protected view may render for the current
// session, and wraps HTTP routes with that decision.
package guard

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/infra/observability"
	"github.com/boddenberg/seal-console/internal/session"

	"go.uber.org/zap"
)

// Decision is the outcome of a guard check.
type Decision int

const (
	Wait Decision = iota
	RedirectSignIn
	RedirectRoot
	Render
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case RedirectSignIn:
		return "redirect-sign-in"
	case RedirectRoot:
		return "redirect-root"
	case Render:
		return "render"
	}
	return "unknown"
}

// Paths a redirect decision points at.
const (
	SignInPath = "/login"
	RootPath   = "/"
)

// Input is what a guard looks at.
type Input struct {
	User          *domain.User
	Profile       *domain.Profile
	Loading       bool
	RequiredStage *int
}

// FromState builds an Input from a session snapshot.
func FromState(st session.State, requiredStage *int) Input {
	return Input{
		User:          st.User,
		Profile:       st.Profile,
		Loading:       st.Loading,
		RequiredStage: requiredStage,
	}
}

// Decide applies the guard rules in order: loading waits, no user goes to
// sign-in, a stage below the required one goes to the root, anything else
// renders. A required stage with the profile not yet loaded waits.
func Decide(in Input) Decision {
	if in.Loading {
		return Wait
	}
	if in.User == nil {
		return RedirectSignIn
	}
	if in.RequiredStage != nil {
		if in.Profile == nil {
			return Wait
		}
		if in.Profile.OnboardingStage < *in.RequiredStage {
			return RedirectRoot
		}
	}
	return Render
}

// Stage returns a pointer to stage, for Input.RequiredStage.
func Stage(stage int) *int {
	return &stage
}

// StateSource yields the current session snapshot.
type StateSource interface {
	Snapshot() session.State
}

// Middleware guards a route. Wait answers 202 with {"state":"loading"};
// redirects answer 307 with a Location header.
func Middleware(src StateSource, requiredStage *int, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Decide(FromState(src.Snapshot(), requiredStage))
			observability.Annotate(r.Context(), zap.String("guard", d.String()))
			switch d {
			case Render:
				next.ServeHTTP(w, r)
			case Wait:
				writeState(w, http.StatusAccepted, map[string]string{"state": "loading"})
			case RedirectSignIn, RedirectRoot:
				target := SignInPath
				if d == RedirectRoot {
					target = RootPath
				}
				logger.Debug("guard redirect",
					zap.String("path", r.URL.Path),
					zap.String("decision", d.String()),
				)
				w.Header().Set("Location", target)
				writeState(w, http.StatusTemporaryRedirect, map[string]string{"redirect": target})
			}
		})
	}
}

func writeState(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
