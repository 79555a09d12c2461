package domain

import "time"

// ============================================================
// Identity: session owned by the Session Store
// ============================================================

// User is the identity provider's view of the logged-in operator.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the authenticated session issued by the identity provider.
type Session struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthEvent names a session-change notification from the identity provider.
type AuthEvent string

const (
	AuthEventSignedIn       AuthEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Credentials is the body for sign-in and sign-up.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
