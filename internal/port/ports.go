// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the console core
// from the identity provider, the remote API and the operating system.
package port

import (
	"context"

	"github.com/boddenberg/seal-console/internal/domain"
)

// AuthStateListener receives identity-provider session changes.
// session is nil after sign-out or expiry.
type AuthStateListener func(event domain.AuthEvent, session *domain.Session)

// IdentityProvider creates, destroys and reports authentication sessions.
// SignUp may return a user without a session while the e-mail is unconfirmed.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.User, *domain.Session, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*domain.Session, error)
	OnAuthStateChange(fn AuthStateListener) (unsubscribe func())
}

// TokenSource yields the bearer credential attached to every remote call.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// AccessToken calls f(ctx).
func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// ProfileAPI is the profile part of the remote gateway.
type ProfileAPI interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, update *domain.ProfileUpdate) (*domain.Profile, error)
	CompleteStage0(ctx context.Context, form *domain.BriefingForm) (*domain.Profile, error)
	CompleteStage1(ctx context.Context) (*domain.Profile, error)
	CompleteStage2(ctx context.Context) (*domain.Profile, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
}

// OnboardingAPI is the external-confirmation part of the remote gateway.
type OnboardingAPI interface {
	CheckSchedule(ctx context.Context) (*domain.ScheduleCheck, error)
	ConfirmSchedule(ctx context.Context) (*domain.StatusMessage, error)
}

// DevAPI holds the development-only simulation endpoints.
type DevAPI interface {
	DevSimulateSchedule(ctx context.Context) (*domain.StatusMessage, error)
	DevSimulateContract(ctx context.Context) (*domain.StatusMessage, error)
	DevCompleteTraining(ctx context.Context) (*domain.StatusMessage, error)
}

// PipelineAPI is the CRM part of the remote gateway.
type PipelineAPI interface {
	GetBoard(ctx context.Context) (*domain.BoardPayload, error)
	ListLeads(ctx context.Context, status domain.LeadStatus) ([]domain.Lead, error)
	CreateLead(ctx context.Context, input *domain.CreateLeadInput) (*domain.Lead, error)
	UpdateLead(ctx context.Context, id int64, patch *domain.LeadPatch) (*domain.Lead, error)
	MoveLead(ctx context.Context, id int64, status domain.LeadStatus) (*domain.Lead, error)
	DeleteLead(ctx context.Context, id int64) error
}

// TrainingAPI is the training part of the remote gateway.
type TrainingAPI interface {
	TrainingOverview(ctx context.Context) (*domain.TrainingOverview, error)
	TrainingModule(ctx context.Context, id int64) (*domain.TrainingModule, error)
	CompleteModule(ctx context.Context, id int64) (*domain.ModuleCompletion, error)
	PendingModules(ctx context.Context) ([]domain.TrainingModule, error)
}

// ResourcesAPI is the resource-library part of the remote gateway.
type ResourcesAPI interface {
	Arsenal(ctx context.Context) (*domain.Arsenal, error)
	ListResources(ctx context.Context, category string) ([]domain.Resource, error)
	RegisterDownload(ctx context.Context, id int64) (*domain.Download, error)
	ResourceCategories(ctx context.Context) ([]domain.CategoryStats, error)
}

// CommissionsAPI is the commissions part of the remote gateway.
type CommissionsAPI interface {
	CommissionSummary(ctx context.Context) (*domain.CommissionSummary, error)
	CommissionRules(ctx context.Context) (*domain.CommissionRules, error)
	ListCommissions(ctx context.Context, status string) ([]domain.Commission, error)
	PendingCommissions(ctx context.Context) ([]domain.Commission, error)
	CommissionStats(ctx context.Context) (*domain.CommissionStats, error)
}

// Launcher opens an external human-facing page. It never blocks on the page.
type Launcher interface {
	Open(url string)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}
