package matching

import (
	"context"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/models"
)

// Reason texts for scores that did not come from an assessment.
const (
	reasonAssessedPlaceholder = "Relevance assessed by AI analysis"
	reasonNoConcerns          = "No specific concerns identified"
	reasonUnavailable         = "AI analysis unavailable for this grant; a neutral score was assigned"
	reasonUnverified          = "Relevance could not be verified; review the grant details manually"
	reasonNotAssessed         = "This grant was not assessed in the AI response; a neutral score was assigned"
)

// BatchResult is the outcome of scoring one batch. Scores always holds one
// entry per grant of the batch, in batch order.
type BatchResult struct {
	Index      int
	Credential string
	Attempts   int
	Degraded   bool
	Err        error
	Scores     []models.GrantScore
}

// Scorer asks the completion service to score one batch of grants.
type Scorer struct {
	retry        RetryPolicy
	timeout      time.Duration
	neutralScore int
}

func NewScorer(retry RetryPolicy, timeout time.Duration, neutralScore int) *Scorer {
	return &Scorer{retry: retry, timeout: timeout, neutralScore: neutralScore}
}

// ScoreBatch never fails: when the service cannot produce usable scores the
// batch is given neutral scores and marked degraded. A batch with any grant
// left unscored is marked degraded too.
func (s *Scorer) ScoreBatch(ctx context.Context, cred *ai.Credential, q ScoringQuery, index int, batch []models.Grant) BatchResult {
	res := BatchResult{Index: index, Credential: cred.Name}
	prompt := BuildScoringPrompt(q, batch)

	raw, attempts, err := Retry(ctx, s.retry, func(ctx context.Context) (string, error) {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return cred.GenerateCompletion(ctx, prompt, true)
	})
	res.Attempts = attempts
	if err != nil {
		return s.degrade(res, batch, err)
	}

	entries, err := DecodeScoreResponse(raw)
	if err != nil {
		return s.degrade(res, batch, err)
	}

	res.Scores = s.assign(entries, batch)
	for _, gs := range res.Scores {
		if gs.Degraded {
			res.Degraded = true
			break
		}
	}
	if res.Degraded {
		log.Printf("[scorer] batch %d (%s) left some grants unscored", res.Index, res.Credential)
		batchesTotal.WithLabelValues("partial").Inc()
	} else {
		batchesTotal.WithLabelValues("scored").Inc()
	}
	return res
}

func (s *Scorer) degrade(res BatchResult, batch []models.Grant, err error) BatchResult {
	log.Printf("[scorer] batch %d (%s) degraded after %d attempt(s): %v", res.Index, res.Credential, res.Attempts, err)
	batchesTotal.WithLabelValues("neutral").Inc()

	res.Err = err
	res.Degraded = true
	res.Scores = make([]models.GrantScore, 0, len(batch))
	for _, g := range batch {
		res.Scores = append(res.Scores, NeutralScore(g.ID, s.neutralScore, reasonUnavailable))
	}
	return res
}

// NeutralScore is the stand-in for a grant that could not be assessed.
func NeutralScore(id uuid.UUID, score int, reason string) models.GrantScore {
	return models.GrantScore{
		GrantID:       id,
		Score:         models.ClampScore(score),
		WhyMatches:    []string{reason},
		WhyNotMatches: []string{reasonUnverified},
		Degraded:      true,
	}
}

// assign ties entries to batch grants by id, then by 1-based index, then by
// position in the response. Entries that name an unknown grant are dropped
// and grants nobody scored get a neutral entry.
func (s *Scorer) assign(entries []ScoreEntry, batch []models.Grant) []models.GrantScore {
	byID := make(map[string]int, len(batch))
	for i, g := range batch {
		byID[g.ID.String()] = i
	}

	scored := make([]*models.GrantScore, len(batch))
	for pos, e := range entries {
		i, ok := resolvePosition(e, pos, byID, len(batch))
		if !ok {
			continue
		}

		gs := models.GrantScore{
			GrantID:       batch[i].ID,
			Score:         s.neutralScore,
			WhyMatches:    e.WhyMatches,
			WhyNotMatches: e.WhyNotMatches,
		}
		if e.HasScore {
			gs.Score = models.ClampScore(int(math.Round(e.Score)))
		} else {
			gs.Degraded = true
		}
		if len(gs.WhyMatches) == 0 {
			gs.WhyMatches = []string{reasonAssessedPlaceholder}
		}
		if len(gs.WhyNotMatches) == 0 {
			gs.WhyNotMatches = []string{reasonNoConcerns}
		}

		if prev := scored[i]; prev == nil || gs.Score > prev.Score {
			scored[i] = &gs
		}
	}

	out := make([]models.GrantScore, 0, len(batch))
	for i, g := range batch {
		if scored[i] == nil {
			out = append(out, NeutralScore(g.ID, s.neutralScore, reasonNotAssessed))
			continue
		}
		out = append(out, *scored[i])
	}
	return out
}

func resolvePosition(e ScoreEntry, pos int, byID map[string]int, n int) (int, bool) {
	if e.ID != "" {
		if id, err := uuid.Parse(e.ID); err == nil {
			if i, ok := byID[id.String()]; ok {
				return i, true
			}
		}
		// Models sometimes echo the [number] as the id.
		if k, err := strconv.Atoi(strings.Trim(e.ID, "[] ")); err == nil && k >= 1 && k <= n && e.Index == 0 {
			return k - 1, true
		}
	}
	if e.Index >= 1 && e.Index <= n {
		return e.Index - 1, true
	}
	if e.ID == "" && e.Index == 0 && pos < n {
		return pos, true
	}
	return 0, false
}
