package gateway

import (
	"context"
	"net/http"

	"github.com/boddenberg/seal-console/internal/domain"
)

// --- Profile (implements port.ProfileAPI) ---

// GetProfile fetches the signed-in operator's profile.
func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, "GetProfile", http.MethodGet, "/profiles/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies a partial profile edit and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, update *domain.ProfileUpdate) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, "UpdateProfile", http.MethodPut, "/profiles/me", update, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CompleteStage0 submits the briefing form.
func (c *Client) CompleteStage0(ctx context.Context, form *domain.BriefingForm) (*domain.Profile, error) {
	return c.completeStage(ctx, "CompleteStage0", "/profiles/onboarding/complete-step-0", form)
}

// CompleteStage1 reports the kickoff meeting as done. The server checks the schedule itself.
func (c *Client) CompleteStage1(ctx context.Context) (*domain.Profile, error) {
	return c.completeStage(ctx, "CompleteStage1", "/profiles/onboarding/complete-step-1", nil)
}

// CompleteStage2 reports the contract as signed.
func (c *Client) CompleteStage2(ctx context.Context) (*domain.Profile, error) {
	return c.completeStage(ctx, "CompleteStage2", "/profiles/onboarding/complete-step-2", nil)
}

func (c *Client) completeStage(ctx context.Context, op, path string, body any) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, op, http.MethodPost, path, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DashboardStats fetches the aggregated operator report.
func (c *Client) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	var s domain.DashboardStats
	if err := c.do(ctx, "DashboardStats", http.MethodGet, "/profiles/dashboard-stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Onboarding (implements port.OnboardingAPI, port.DevAPI) ---

// CheckSchedule asks whether the kickoff meeting has been booked.
func (c *Client) CheckSchedule(ctx context.Context) (*domain.ScheduleCheck, error) {
	var sc domain.ScheduleCheck
	if err := c.do(ctx, "CheckSchedule", http.MethodGet, "/onboarding/check-schedule", nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ConfirmSchedule asks the server to confirm the booking. A "pending" status
// is returned as-is; interpreting it belongs to the caller.
func (c *Client) ConfirmSchedule(ctx context.Context) (*domain.StatusMessage, error) {
	var sm domain.StatusMessage
	if err := c.do(ctx, "ConfirmSchedule", http.MethodPost, "/onboarding/confirm-schedule", nil, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

// DevSimulateSchedule books a fake kickoff meeting. Refused unless dev mode is on.
func (c *Client) DevSimulateSchedule(ctx context.Context) (*domain.StatusMessage, error) {
	return c.devCall(ctx, "DevSimulateSchedule", "dev-simulate-schedule", "/onboarding/dev-simulate-schedule")
}

// DevSimulateContract marks the contract as signed on the server. Dev mode only.
func (c *Client) DevSimulateContract(ctx context.Context) (*domain.StatusMessage, error) {
	return c.devCall(ctx, "DevSimulateContract", "dev-simulate-contract", "/onboarding/dev-simulate-contract")
}

// DevCompleteTraining completes every training module. Dev mode only.
func (c *Client) DevCompleteTraining(ctx context.Context) (*domain.StatusMessage, error) {
	return c.devCall(ctx, "DevCompleteTraining", "dev-complete-training", "/training/dev-complete-all")
}

func (c *Client) devCall(ctx context.Context, op, action, path string) (*domain.StatusMessage, error) {
	if !c.devMode {
		return nil, &domain.ErrForbidden{Action: action}
	}
	var sm domain.StatusMessage
	if err := c.do(ctx, op, http.MethodPost, path, nil, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}
