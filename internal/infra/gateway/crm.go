package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/seal-console/internal/domain"
)

// --- CRM (implements port.PipelineAPI) ---

// GetBoard fetches the operator's leads grouped by bucket.
func (c *Client) GetBoard(ctx context.Context) (*domain.BoardPayload, error) {
	var b domain.BoardPayload
	if err := c.do(ctx, "GetBoard", http.MethodGet, "/crm/board", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListLeads lists leads, optionally filtered by status. An empty status lists all.
func (c *Client) ListLeads(ctx context.Context, status domain.LeadStatus) ([]domain.Lead, error) {
	path := "/crm/leads"
	if status != "" {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var leads []domain.Lead
	if err := c.do(ctx, "ListLeads", http.MethodGet, path, nil, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// CreateLead creates a lead. The server defaults the status to RADAR.
func (c *Client) CreateLead(ctx context.Context, input *domain.CreateLeadInput) (*domain.Lead, error) {
	var l domain.Lead
	if err := c.do(ctx, "CreateLead", http.MethodPost, "/crm/leads", input, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLead applies a partial edit.
func (c *Client) UpdateLead(ctx context.Context, id int64, patch *domain.LeadPatch) (*domain.Lead, error) {
	var l domain.Lead
	if err := c.do(ctx, "UpdateLead", http.MethodPut, fmt.Sprintf("/crm/leads/%d", id), patch, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// MoveLead changes a lead's bucket.
func (c *Client) MoveLead(ctx context.Context, id int64, status domain.LeadStatus) (*domain.Lead, error) {
	body := map[string]domain.LeadStatus{"status": status}
	var l domain.Lead
	if err := c.do(ctx, "MoveLead", http.MethodPatch, fmt.Sprintf("/crm/leads/%d/move", id), body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLead removes a lead.
func (c *Client) DeleteLead(ctx context.Context, id int64) error {
	return c.do(ctx, "DeleteLead", http.MethodDelete, fmt.Sprintf("/crm/leads/%d", id), nil, nil)
}
