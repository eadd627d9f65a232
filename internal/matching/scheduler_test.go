package matching

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-matcher/internal/models"
)

func manyGrants(n int) []models.Grant {
	out := make([]models.Grant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, newGrant(fmt.Sprintf("grant-%02d", i), "Education", day(i)))
	}
	return out
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 6, []int{}},
		{5, 6, []int{5}},
		{12, 6, []int{6, 6}},
		{13, 6, []int{6, 6, 1}},
		{3, 0, []int{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_by_%d", tt.n, tt.size), func(t *testing.T) {
			grants := manyGrants(tt.n)
			batches := Partition(grants, tt.size)

			sizes := []int{}
			var flat []models.Grant
			for _, b := range batches {
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.want, sizes)
			assert.Equal(t, len(grants), len(flat))
			for i := range flat {
				assert.Equal(t, grants[i].ID, flat[i].ID, "order preserved")
			}
		})
	}
}

// barrierCompleter only answers once `want` calls are in flight at the same
// time, so it fails if batches run one after another.
type barrierCompleter struct {
	name    string
	mu      *sync.Mutex
	arrived *int
	want    int
	release chan struct{}
	seen    *[]string
}

func (b *barrierCompleter) GenerateCompletion(ctx context.Context, prompt string, _ bool) (string, error) {
	b.mu.Lock()
	*b.arrived++
	*b.seen = append(*b.seen, b.name)
	if *b.arrived == b.want {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	var ids []uuid.UUID
	for _, m := range promptGrantRe.FindAllStringSubmatch(prompt, -1) {
		ids = append(ids, uuid.MustParse(m[2]))
	}
	return scoresJSON(ids, func(uuid.UUID) int { return 60 }), nil
}

func TestScheduler_RunsBatchesConcurrentlyRoundRobin(t *testing.T) {
	var mu sync.Mutex
	arrived := 0
	release := make(chan struct{})
	seen := []string{}
	mk := func(name string) *barrierCompleter {
		return &barrierCompleter{name: name, mu: &mu, arrived: &arrived, want: 3, release: release, seen: &seen}
	}

	pool := testPool(t, mk("a"), mk("b"))
	scorer := NewScorer(testRetry(), 2*time.Second, 50)
	sched := NewScheduler(pool, scorer, 6)

	grants := manyGrants(13)
	results := sched.ScoreAll(context.Background(), ScoringQuery{Query: "stem"}, grants)

	require.Len(t, results, 3)
	wantCreds := []string{"cred-0", "cred-1", "cred-0"}
	wantSizes := []int{6, 6, 1}
	for i, r := range results {
		assert.Equal(t, i, r.Index, "results are indexed by batch, not completion order")
		assert.Equal(t, wantCreds[i], r.Credential)
		assert.False(t, r.Degraded, "batch %d", i)
		assert.Len(t, r.Scores, wantSizes[i])
	}
	assert.ElementsMatch(t, []string{"a", "b", "a"}, seen)
}

func TestScheduler_OneFailingCredentialOnlyDegradesItsBatches(t *testing.T) {
	good := &fakeCompleter{}
	bad := &fakeCompleter{scoreFn: func(int, []uuid.UUID) (string, error) { return "not json", nil }}

	sched := NewScheduler(testPool(t, good, bad), NewScorer(testRetry(), time.Second, 50), 5)
	results := sched.ScoreAll(context.Background(), ScoringQuery{}, manyGrants(15))

	require.Len(t, results, 3)
	assert.False(t, results[0].Degraded)
	assert.True(t, results[1].Degraded)
	assert.False(t, results[2].Degraded)
}
