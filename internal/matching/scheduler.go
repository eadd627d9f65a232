package matching

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/models"
)

// Partition splits grants into consecutive batches of size; the last batch
// may be shorter.
func Partition(grants []models.Grant, size int) [][]models.Grant {
	if size < 1 {
		size = 1
	}
	batches := make([][]models.Grant, 0, (len(grants)+size-1)/size)
	for start := 0; start < len(grants); start += size {
		end := min(start+size, len(grants))
		batches = append(batches, grants[start:end])
	}
	return batches
}

// Scheduler fans batches out over the credential pool and waits for all of
// them.
type Scheduler struct {
	pool      *ai.Pool
	scorer    *Scorer
	batchSize int
}

func NewScheduler(pool *ai.Pool, scorer *Scorer, batchSize int) *Scheduler {
	return &Scheduler{pool: pool, scorer: scorer, batchSize: batchSize}
}

// ScoreAll scores every batch concurrently. Batch i runs on credential
// i mod pool size. Results are indexed by batch number.
func (s *Scheduler) ScoreAll(ctx context.Context, q ScoringQuery, grants []models.Grant) []BatchResult {
	batches := Partition(grants, s.batchSize)
	results := make([]BatchResult, len(batches))

	var g errgroup.Group
	for i, batch := range batches {
		cred := s.pool.ForBatch(i)
		g.Go(func() error {
			results[i] = s.scorer.ScoreBatch(ctx, cred, q, i, batch)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
