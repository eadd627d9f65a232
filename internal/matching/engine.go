package matching

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/config"
	"github.com/david/grant-matcher/internal/models"
)

// ErrEmptyQuery is returned when a search has no text to interpret.
var ErrEmptyQuery = errors.New("search query is empty")

type SearchRequest struct {
	Query                 string
	UserID                *uuid.UUID
	Filters               *models.HardFilters
	UseProfilePreferences bool
}

type SearchResult struct {
	Criteria       models.SearchCriteria `json:"criteria"`
	Grants         []models.ScoredGrant  `json:"grants"`
	CandidateCount int                   `json:"candidate_count"`
	CacheHit       bool                  `json:"cache_hit"`
	// DegradedBatches counts batches where any grant fell back to a neutral score.
	DegradedBatches int `json:"degraded_batches"`
}

// Engine runs searches end to end. It owns its result cache and credential
// pool; nothing is shared between engines.
type Engine struct {
	fetcher     *CandidateFetcher
	prefs       PreferenceStore
	interpreter *Interpreter
	scheduler   *Scheduler
	cache       *ResultCache
	threshold   ThresholdPolicy

	boost               int
	neutralScore        int
	applyCriteriaFilter bool
}

// NewEngine wires an engine from configuration. prefs may be nil when no
// profile storage is available.
func NewEngine(grants GrantStore, prefs PreferenceStore, pool *ai.Pool, cfg config.MatchingConfig) *Engine {
	retry := RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.RetryBaseDelay}
	scorer := NewScorer(retry, cfg.BatchTimeout, cfg.NeutralScore)

	return &Engine{
		fetcher:     NewCandidateFetcher(grants),
		prefs:       prefs,
		interpreter: NewInterpreter(pool, retry, cfg.InterpretTimeout),
		scheduler:   NewScheduler(pool, scorer, cfg.BatchSize),
		cache:       NewResultCache(cfg.CacheTTL),
		threshold: ThresholdPolicy{
			MinScore:        cfg.MinScore,
			GoodMatchScore:  cfg.GoodMatchScore,
			PruneBelowScore: cfg.PruneBelowScore,
		},
		boost:               cfg.PreferenceBoost,
		neutralScore:        cfg.NeutralScore,
		applyCriteriaFilter: cfg.ApplyInterpretedFilters,
	}
}

// SetClock replaces the time source used for eligibility and prompts.
func (e *Engine) SetClock(now func() time.Time) {
	e.fetcher.now = now
	e.interpreter.now = now
}

func (e *Engine) SearchGrants(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()
	defer func() { searchLatency.Observe(time.Since(start).Seconds()) }()

	criteria := e.interpreter.Interpret(ctx, query)

	var filters models.HardFilters
	switch {
	case req.Filters != nil:
		filters = *req.Filters
	case e.applyCriteriaFilter:
		filters = FiltersFromCriteria(criteria)
	}

	candidates, err := e.fetcher.Fetch(ctx, filters)
	if err != nil {
		return nil, err
	}
	candidatesPerSearch.Observe(float64(len(candidates)))

	result := &SearchResult{
		Criteria:       criteria,
		Grants:         []models.ScoredGrant{},
		CandidateCount: len(candidates),
	}
	if len(candidates) == 0 {
		return result, nil
	}

	prefs := e.loadPreferences(ctx, req)

	cacheQuery := query
	if prefs != nil {
		cacheQuery = query + "#profile=" + prefs.Fingerprint()
	}

	merged, hit := e.cache.Get(cacheQuery, len(candidates))
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		batches := e.scheduler.ScoreAll(ctx, ScoringQuery{Query: query, Criteria: criteria, Preferences: prefs}, candidates)
		for _, b := range batches {
			if b.Degraded {
				result.DegradedBatches++
			}
		}
		merged = MergeBatchScores(batches, candidates)
		if result.DegradedBatches == 0 {
			e.cache.Put(cacheQuery, len(candidates), merged)
		}
	}
	result.CacheHit = hit

	ranked := ApplyThreshold(RankScores(merged, prefs, candidates, e.boost), e.threshold)

	result.Grants = joinScores(ranked, candidates)
	return result, nil
}

// loadPreferences never fails a search: lookup errors only lose the boost.
func (e *Engine) loadPreferences(ctx context.Context, req SearchRequest) *models.UserMatchPreferences {
	if !req.UseProfilePreferences || req.UserID == nil || e.prefs == nil {
		return nil
	}
	prefs, err := e.prefs.GetUserPreferences(ctx, *req.UserID)
	if err != nil {
		log.Printf("[matcher] preferences for %s unavailable, continuing without: %v", req.UserID, err)
		return nil
	}
	return prefs
}

// FilterGrantsManually returns the filtered candidates in deadline order
// without consulting the completion service.
func (e *Engine) FilterGrantsManually(ctx context.Context, filters models.HardFilters) ([]models.ScoredGrant, error) {
	candidates, err := e.fetcher.Fetch(ctx, filters)
	if err != nil {
		return nil, err
	}

	out := make([]models.ScoredGrant, 0, len(candidates))
	for _, g := range candidates {
		out = append(out, models.NewScoredGrant(g, models.GrantScore{
			GrantID:       g.ID,
			Score:         e.neutralScore,
			WhyMatches:    filters.Describe(g),
			WhyNotMatches: []string{},
		}))
	}
	return out, nil
}

// GetAllGrants lists every eligible grant with the neutral score.
func (e *Engine) GetAllGrants(ctx context.Context) ([]models.ScoredGrant, error) {
	candidates, err := e.fetcher.Fetch(ctx, models.HardFilters{})
	if err != nil {
		return nil, err
	}

	out := make([]models.ScoredGrant, 0, len(candidates))
	for _, g := range candidates {
		out = append(out, models.NewScoredGrant(g, models.GrantScore{GrantID: g.ID, Score: e.neutralScore}))
	}
	return out, nil
}

func joinScores(scores []models.GrantScore, candidates []models.Grant) []models.ScoredGrant {
	byID := make(map[uuid.UUID]models.Grant, len(candidates))
	for _, g := range candidates {
		byID[g.ID] = g
	}
	out := make([]models.ScoredGrant, 0, len(scores))
	for _, s := range scores {
		if g, ok := byID[s.GrantID]; ok {
			out = append(out, models.NewScoredGrant(g, s))
		}
	}
	return out
}
