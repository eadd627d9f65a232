package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/models"
)

func testBatch() []models.Grant {
	return []models.Grant{
		newGrant("river-cleanup", "Environment", day(10)),
		newGrant("rural-clinic", "Health", day(20)),
		newGrant("tree-planting", "Environment", nil),
	}
}

func scoreOne(t *testing.T, fake ai.Completer, batch []models.Grant) BatchResult {
	t.Helper()
	s := NewScorer(testRetry(), time.Second, 50)
	cred := ai.NewCredential("primary", fake, 0)
	return s.ScoreBatch(context.Background(), cred, ScoringQuery{Query: "clean water"}, 0, batch)
}

func TestScoreBatch_MatchesByIDIndexAndPosition(t *testing.T) {
	batch := testBatch()
	raw := fmt.Sprintf(`[
		{"grant_id": %q, "score": 140, "why_matches": ["water quality"], "why_not_matches": ["small budget"]},
		{"score": 55.6},
		{"index": 3, "score": -12}
	]`, batch[0].ID)

	res := scoreOne(t, &fakeCompleter{scoreFn: func(int, []uuid.UUID) (string, error) { return raw, nil }}, batch)

	require.False(t, res.Degraded)
	require.Len(t, res.Scores, 3)

	assert.Equal(t, batch[0].ID, res.Scores[0].GrantID)
	assert.Equal(t, 100, res.Scores[0].Score, "clamped to 100")
	assert.Equal(t, []string{"water quality"}, res.Scores[0].WhyMatches)

	// The second entry has neither id nor index, so it is matched by its
	// position in the response.
	assert.Equal(t, batch[1].ID, res.Scores[1].GrantID)
	assert.Equal(t, 56, res.Scores[1].Score)

	assert.Equal(t, batch[2].ID, res.Scores[2].GrantID)
	assert.Equal(t, 0, res.Scores[2].Score, "clamped to 0")
	assert.Equal(t, []string{reasonAssessedPlaceholder}, res.Scores[2].WhyMatches)
	assert.Equal(t, []string{reasonNoConcerns}, res.Scores[2].WhyNotMatches)
}

func TestScoreBatch_PositionalEntry(t *testing.T) {
	batch := testBatch()
	raw := `{"scores":[{"score":10},{"score":55.6},{"score":90}]}`

	res := scoreOne(t, &fakeCompleter{scoreFn: func(int, []uuid.UUID) (string, error) { return raw, nil }}, batch)
	require.Len(t, res.Scores, 3)
	assert.Equal(t, 10, res.Scores[0].Score)
	assert.Equal(t, 56, res.Scores[1].Score)
	assert.Equal(t, 90, res.Scores[2].Score)
}

func TestScoreBatch_DropsUnknownAndFillsOmitted(t *testing.T) {
	batch := testBatch()
	raw := fmt.Sprintf(`[
		{"grant_id": %q, "score": 70},
		{"grant_id": %q, "score": 30},
		{"grant_id": %q, "score": 90},
		{"grant_id": %q, "score": 60}
	]`, uuid.New(), batch[1].ID, batch[1].ID, batch[0].ID)

	res := scoreOne(t, &fakeCompleter{scoreFn: func(int, []uuid.UUID) (string, error) { return raw, nil }}, batch)

	require.Len(t, res.Scores, 3)
	assert.Equal(t, 60, res.Scores[0].Score)
	assert.Equal(t, 90, res.Scores[1].Score, "duplicate keeps the higher score")
	assert.Equal(t, 50, res.Scores[2].Score, "omitted grant gets the neutral score")
	assert.True(t, res.Scores[2].Degraded)
	assert.Equal(t, []string{reasonNotAssessed}, res.Scores[2].WhyMatches)
	assert.True(t, res.Degraded, "a batch with an unscored grant is degraded")
	assert.NoError(t, res.Err)
}

func TestScoreBatch_RetriesRateLimitThenSucceeds(t *testing.T) {
	batch := testBatch()
	fake := &fakeCompleter{scoreFn: func(call int, ids []uuid.UUID) (string, error) {
		if call <= 2 {
			return "", fmt.Errorf("provider: %w", ai.ErrRateLimited)
		}
		return scoresJSON(ids, func(uuid.UUID) int { return 77 }), nil
	}}

	res := scoreOne(t, fake, batch)

	assert.False(t, res.Degraded)
	assert.Equal(t, 3, res.Attempts)
	for _, s := range res.Scores {
		assert.Equal(t, 77, s.Score)
	}
}

func TestScoreBatch_NeutralAfterExhaustedRetries(t *testing.T) {
	batch := testBatch()
	fake := &fakeCompleter{scoreFn: func(int, []uuid.UUID) (string, error) {
		return "", &ai.StatusError{StatusCode: 429}
	}}

	res := scoreOne(t, fake, batch)

	assert.True(t, res.Degraded)
	assert.Equal(t, 3, res.Attempts)
	require.Error(t, res.Err)
	require.Len(t, res.Scores, len(batch))
	for i, s := range res.Scores {
		assert.Equal(t, batch[i].ID, s.GrantID)
		assert.Equal(t, 50, s.Score)
		assert.True(t, s.Degraded)
		assert.Equal(t, []string{reasonUnavailable}, s.WhyMatches)
		assert.NotEmpty(t, s.WhyNotMatches)
	}
}

func TestScoreBatch_MalformedResponseIsNotRetried(t *testing.T) {
	fake := &fakeCompleter{scoreFn: func(int, []uuid.UUID) (string, error) {
		return "Sure! Here are my thoughts on each grant.", nil
	}}

	res := scoreOne(t, fake, testBatch())

	assert.True(t, res.Degraded)
	assert.Equal(t, 1, res.Attempts)
	_, calls := fake.calls()
	assert.Equal(t, 1, calls)
}

type slowCompleter struct{ calls int }

func (s *slowCompleter) GenerateCompletion(ctx context.Context, _ string, _ bool) (string, error) {
	s.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

func TestScoreBatch_TimeoutIsRetriedThenNeutral(t *testing.T) {
	slow := &slowCompleter{}
	s := NewScorer(testRetry(), 5*time.Millisecond, 50)

	res := s.ScoreBatch(context.Background(), ai.NewCredential("slow", slow, 0), ScoringQuery{}, 4, testBatch())

	assert.True(t, res.Degraded)
	assert.Equal(t, 4, res.Index)
	assert.Equal(t, 3, slow.calls)
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded))
}

func TestScoreBatch_CancelledSearchStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeCompleter{scoreFn: func(int, []uuid.UUID) (string, error) {
		cancel()
		return "", ai.ErrRateLimited
	}}
	s := NewScorer(testRetry(), time.Second, 50)

	res := s.ScoreBatch(ctx, ai.NewCredential("c", fake, 0), ScoringQuery{}, 0, testBatch())

	assert.True(t, res.Degraded)
	_, calls := fake.calls()
	assert.Equal(t, 1, calls)
}
