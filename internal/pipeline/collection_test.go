package pipeline_test

import (
	"testing"

	"github.com/boddenberg/seal-console/internal/domain"
	"github.com/boddenberg/seal-console/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_CountersFollowTheLeads(t *testing.T) {
	payload := &domain.BoardPayload{
		Radar: []domain.Lead{{ID: 1, Name: "Ana", Status: domain.StatusRadar}},
		Resgate: []domain.Lead{
			{ID: 2, Name: "Bruno", Status: domain.StatusResgate},
			{ID: 3, Name: "Carla", Status: domain.StatusResgate},
		},
		TotalCount:    40,
		FamiliesSaved: 17,
	}

	b := pipeline.NewCollection(payload).Project()

	assert.Equal(t, 3, b.TotalCount)
	assert.Equal(t, 2, b.FamiliesSaved)
	assert.Len(t, b.Bucket(domain.StatusResgate), b.FamiliesSaved)
}

func TestProject_DuplicateLeadCountedOnce(t *testing.T) {
	dup := domain.Lead{ID: 5, Name: "Dora", Status: domain.StatusResgate}
	payload := &domain.BoardPayload{
		Combate: []domain.Lead{{ID: 5, Name: "Dora", Status: domain.StatusCombate}},
		Resgate: []domain.Lead{dup},
	}

	b := pipeline.NewCollection(payload).Project()

	require.Len(t, b.Buckets, 4)
	assert.Equal(t, 1, b.TotalCount)
	assert.Len(t, b.Bucket(domain.StatusCombate), 1)
	assert.Equal(t, 0, b.FamiliesSaved)
}
