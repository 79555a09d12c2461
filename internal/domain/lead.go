package domain

import "time"

// LeadStatus is a pipeline bucket.
type LeadStatus string

const (
	StatusRadar    LeadStatus = "RADAR"
	StatusCombate  LeadStatus = "COMBATE"
	StatusExtracao LeadStatus = "EXTRAÇÃO"
	StatusResgate  LeadStatus = "RESGATE"
)

// Buckets lists the pipeline buckets in board order.
var Buckets = []LeadStatus{StatusRadar, StatusCombate, StatusExtracao, StatusResgate}

// Valid reports whether s is one of the four buckets.
func (s LeadStatus) Valid() bool {
	switch s {
	case StatusRadar, StatusCombate, StatusExtracao, StatusResgate:
		return true
	}
	return false
}

// Lead is a CRM card.
type Lead struct {
	ID             int64      `json:"id"`
	Status         LeadStatus `json:"status"`
	Name           string     `json:"name"`
	Phone          *string    `json:"phone"`
	Email          *string    `json:"email"`
	PotentialValue float64    `json:"potential_value"`
	Notes          *string    `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateLeadInput is the body for POST /crm/leads.
type CreateLeadInput struct {
	Name           string     `json:"name"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	PotentialValue float64    `json:"potential_value,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Status         LeadStatus `json:"status,omitempty"`
}

// LeadPatch is the body for PUT /crm/leads/{id}.
type LeadPatch struct {
	Name           *string     `json:"name,omitempty"`
	Phone          *string     `json:"phone,omitempty"`
	Email          *string     `json:"email,omitempty"`
	PotentialValue *float64    `json:"potential_value,omitempty"`
	Notes          *string     `json:"notes,omitempty"`
	Status         *LeadStatus `json:"status,omitempty"`
}

// BoardPayload is the wire shape of GET /crm/board.
type BoardPayload struct {
	Radar         []Lead `json:"RADAR"`
	Combate       []Lead `json:"COMBATE"`
	Extracao      []Lead `json:"EXTRAÇÃO"`
	Resgate       []Lead `json:"RESGATE"`
	TotalCount    int    `json:"total_count"`
	FamiliesSaved int    `json:"families_saved"`
}

// Leads flattens the payload in board order, keeping the server's order within each bucket.
func (b *BoardPayload) Leads() []Lead {
	out := make([]Lead, 0, len(b.Radar)+len(b.Combate)+len(b.Extracao)+len(b.Resgate))
	out = append(out, b.Radar...)
	out = append(out, b.Combate...)
	out = append(out, b.Extracao...)
	out = append(out, b.Resgate...)
	return out
}

// Bucket is one board column.
type Bucket struct {
	Status LeadStatus `json:"status"`
	Leads  []Lead     `json:"leads"`
}

// Board is the four-bucket projection of the operator's leads.
type Board struct {
	Buckets       []Bucket `json:"buckets"`
	TotalCount    int      `json:"total_count"`
	FamiliesSaved int      `json:"families_saved"`
}

// Bucket returns the leads in the given status, or nil.
func (b *Board) Bucket(status LeadStatus) []Lead {
	for _, bk := range b.Buckets {
		if bk.Status == status {
			return bk.Leads
		}
	}
	return nil
}
