package pipeline

import "github.com/boddenberg/seal-console/internal/domain"

// Collection is the keyed lead set of one board fetch. It is never mutated
// after construction; the board is always a projection of it.
type Collection struct {
	order []int64
	leads map[int64]domain.Lead
}

// NewCollection indexes a board payload. Server order is kept; the
// payload's counters are ignored and recomputed by Project.
func NewCollection(p *domain.BoardPayload) *Collection {
	all := p.Leads()
	c := &Collection{
		order: make([]int64, 0, len(all)),
		leads: make(map[int64]domain.Lead, len(all)),
	}
	for _, l := range all {
		if _, dup := c.leads[l.ID]; dup {
			continue
		}
		c.order = append(c.order, l.ID)
		c.leads[l.ID] = l
	}
	return c
}

// Get returns the lead with the given id.
func (c *Collection) Get(id int64) (domain.Lead, bool) {
	l, ok := c.leads[id]
	return l, ok
}

// Len returns the number of leads.
func (c *Collection) Len() int {
	return len(c.order)
}

// Project partitions the leads into the four buckets. Every lead lands in
// exactly one bucket; leads with an unknown status are left out. Families
// saved is the size of the RESGATE bucket.
func (c *Collection) Project() *domain.Board {
	byStatus := make(map[domain.LeadStatus][]domain.Lead, len(domain.Buckets))
	for _, id := range c.order {
		l := c.leads[id]
		byStatus[l.Status] = append(byStatus[l.Status], l)
	}

	b := &domain.Board{
		Buckets:       make([]domain.Bucket, 0, len(domain.Buckets)),
		FamiliesSaved: len(byStatus[domain.StatusResgate]),
	}
	for _, status := range domain.Buckets {
		leads := byStatus[status]
		if leads == nil {
			leads = []domain.Lead{}
		}
		b.Buckets = append(b.Buckets, domain.Bucket{Status: status, Leads: leads})
		b.TotalCount += len(leads)
	}
	return b
}
