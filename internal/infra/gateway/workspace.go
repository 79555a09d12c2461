package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/seal-console/internal/domain"
)

// --- Training (implements port.TrainingAPI) ---

func (c *Client) TrainingOverview(ctx context.Context) (*domain.TrainingOverview, error) {
	var o domain.TrainingOverview
	if err := c.do(ctx, "TrainingOverview", http.MethodGet, "/training/modules", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) TrainingModule(ctx context.Context, id int64) (*domain.TrainingModule, error) {
	var m domain.TrainingModule
	if err := c.do(ctx, "TrainingModule", http.MethodGet, fmt.Sprintf("/training/modules/%d", id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) CompleteModule(ctx context.Context, id int64) (*domain.ModuleCompletion, error) {
	mc := domain.ModuleCompletion{ModuleID: id}
	if err := c.do(ctx, "CompleteModule", http.MethodPost, fmt.Sprintf("/training/modules/%d/complete", id), nil, &mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

func (c *Client) PendingModules(ctx context.Context) ([]domain.TrainingModule, error) {
	var modules []domain.TrainingModule
	if err := c.do(ctx, "PendingModules", http.MethodGet, "/training/pending", nil, &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// --- Resources (implements port.ResourcesAPI) ---

func (c *Client) Arsenal(ctx context.Context) (*domain.Arsenal, error) {
	var a domain.Arsenal
	if err := c.do(ctx, "Arsenal", http.MethodGet, "/resources/arsenal", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ListResources(ctx context.Context, category string) ([]domain.Resource, error) {
	path := "/resources/list"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}
	var resources []domain.Resource
	if err := c.do(ctx, "ListResources", http.MethodGet, path, nil, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// RegisterDownload counts a download and returns the file URL to open.
func (c *Client) RegisterDownload(ctx context.Context, id int64) (*domain.Download, error) {
	var d domain.Download
	if err := c.do(ctx, "RegisterDownload", http.MethodPost, fmt.Sprintf("/resources/%d/download", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) ResourceCategories(ctx context.Context) ([]domain.CategoryStats, error) {
	var stats []domain.CategoryStats
	if err := c.do(ctx, "ResourceCategories", http.MethodGet, "/resources/categories", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// --- Commissions (implements port.CommissionsAPI) ---

func (c *Client) CommissionSummary(ctx context.Context) (*domain.CommissionSummary, error) {
	var s domain.CommissionSummary
	if err := c.do(ctx, "CommissionSummary", http.MethodGet, "/commissions/summary", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) CommissionRules(ctx context.Context) (*domain.CommissionRules, error) {
	var r domain.CommissionRules
	if err := c.do(ctx, "CommissionRules", http.MethodGet, "/commissions/rules", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListCommissions(ctx context.Context, status string) ([]domain.Commission, error) {
	path := "/commissions/list"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var list []domain.Commission
	if err := c.do(ctx, "ListCommissions", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PendingCommissions lists the entries still awaiting payment, PENDING and
// APPROVED alike.
func (c *Client) PendingCommissions(ctx context.Context) ([]domain.Commission, error) {
	var list []domain.Commission
	if err := c.do(ctx, "PendingCommissions", http.MethodGet, "/commissions/pending", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CommissionStats(ctx context.Context) (*domain.CommissionStats, error) {
	var s domain.CommissionStats
	if err := c.do(ctx, "CommissionStats", http.MethodGet, "/commissions/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
