package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-matcher/internal/models"
)

func gs(id uuid.UUID, score int, why ...string) models.GrantScore {
	return models.GrantScore{GrantID: id, Score: score, WhyMatches: why, WhyNotMatches: []string{}}
}

func TestMergeBatchScores_KeepsHighestAndDropsStrangers(t *testing.T) {
	a := newGrant("a", "Environment", nil)
	b := newGrant("b", "Health", nil)
	stranger := uuid.New()

	batches := []BatchResult{
		{Index: 0, Scores: []models.GrantScore{gs(a.ID, 40, "first"), gs(stranger, 99)}},
		{Index: 1, Scores: []models.GrantScore{gs(b.ID, 70), gs(a.ID, 65, "second")}},
	}

	merged := MergeBatchScores(batches, []models.Grant{a, b})

	require.Len(t, merged, 2)
	assert.Equal(t, a.ID, merged[0].GrantID)
	assert.Equal(t, 65, merged[0].Score)
	assert.Equal(t, []string{"second"}, merged[0].WhyMatches, "reasons travel with the winning score")
	assert.Equal(t, b.ID, merged[1].GrantID)
}

func TestApplyPreferenceBoost(t *testing.T) {
	env := newGrant("env", "Environmental Justice", nil)
	health := newGrant("health", "Health", nil)
	high := newGrant("high", "environment", nil)
	candidates := []models.Grant{env, health, high}

	scores := []models.GrantScore{gs(env.ID, 60, "x"), gs(health.ID, 60, "y"), gs(high.ID, 98, "z")}
	prefs := &models.UserMatchPreferences{IssueAreas: []string{"ENVIRONMENT", "education"}}

	ApplyPreferenceBoost(scores, prefs, candidates, 5)

	assert.Equal(t, 65, scores[0].Score)
	assert.Equal(t, []string{"x", "Matches your organization's focus on ENVIRONMENT"}, scores[0].WhyMatches)
	assert.Equal(t, 60, scores[1].Score)
	assert.Equal(t, []string{"y"}, scores[1].WhyMatches)
	assert.Equal(t, 100, scores[2].Score, "boost clamps at 100")
}

func TestApplyPreferenceBoost_NoPreferences(t *testing.T) {
	g := newGrant("g", "Environment", nil)
	scores := []models.GrantScore{gs(g.ID, 60)}

	ApplyPreferenceBoost(scores, nil, []models.Grant{g}, 5)
	ApplyPreferenceBoost(scores, &models.UserMatchPreferences{IssueAreas: []string{}}, []models.Grant{g}, 5)

	assert.Equal(t, 60, scores[0].Score)
}

func TestRankScores_SortsStableDescending(t *testing.T) {
	grants := []models.Grant{
		newGrant("g1", "Arts", nil),
		newGrant("g2", "Arts", nil),
		newGrant("g3", "Arts", nil),
		newGrant("g4", "Arts", nil),
	}
	batches := []BatchResult{
		{Scores: []models.GrantScore{gs(grants[0].ID, 40), gs(grants[1].ID, 80)}},
		{Scores: []models.GrantScore{gs(grants[2].ID, 40), gs(grants[3].ID, 90)}},
	}

	out := RankScores(MergeBatchScores(batches, grants), nil, grants, 5)

	ids := []uuid.UUID{}
	for _, s := range out {
		ids = append(ids, s.GrantID)
	}
	assert.Equal(t, []uuid.UUID{grants[3].ID, grants[1].ID, grants[0].ID, grants[2].ID}, ids)
}
