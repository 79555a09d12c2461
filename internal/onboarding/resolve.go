// Package onboarding drives an operator from sign-up to the operational
// workspace: briefing, kickoff scheduling, then training and contract.
package onboarding

import (
	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/session"
)

// Screen is the view an operator should see.
type Screen string

const (
	ScreenLoading     Screen = "loading"
	ScreenSignIn      Screen = "sign-in"
	ScreenBriefing    Screen = "briefing"
	ScreenKickoff     Screen = "kickoff"
	ScreenEngagement  Screen = "engagement"
	ScreenOperational Screen = "operational"
)

// Resolve maps a session snapshot to a screen. It depends on nothing but the
// snapshot, so a reload always lands on the stage the server reports.
func Resolve(st session.State) Screen {
	switch {
	case st.Loading:
		return ScreenLoading
	case st.User == nil:
		return ScreenSignIn
	case st.Profile == nil:
		return ScreenLoading
	}

	switch stage := st.Profile.OnboardingStage; {
	case stage <= domain.StageBriefing:
		return ScreenBriefing
	case stage == domain.StageKickoff:
		return ScreenKickoff
	case stage == domain.StageEngagement:
		return ScreenEngagement
	default:
		return ScreenOperational
	}
}
