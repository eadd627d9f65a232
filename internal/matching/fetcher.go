package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/david/grant-matcher/internal/models"
)

// ErrFetchFailed wraps storage failures while loading candidates. Callers
// should surface it as retryable.
var ErrFetchFailed = errors.New("failed to fetch candidate grants")

// GrantStore lists active grants whose deadline has not passed, narrowed by
// filters and ordered by ascending deadline with rolling grants last.
type GrantStore interface {
	ListActiveGrants(ctx context.Context, filters models.HardFilters) ([]models.Grant, error)
}

// PreferenceStore loads a user's match preferences. A nil result with a nil
// error means the user has no profile.
type PreferenceStore interface {
	GetUserPreferences(ctx context.Context, userID uuid.UUID) (*models.UserMatchPreferences, error)
}

type CandidateFetcher struct {
	store GrantStore
	now   func() time.Time
}

func NewCandidateFetcher(store GrantStore) *CandidateFetcher {
	return &CandidateFetcher{store: store, now: time.Now}
}

// Fetch loads the candidate set. The store's answer is re-checked against
// the eligibility and filter predicates and re-sorted, so every store gives
// the same contract.
func (f *CandidateFetcher) Fetch(ctx context.Context, filters models.HardFilters) ([]models.Grant, error) {
	grants, err := f.store.ListActiveGrants(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	today := f.now()
	out := make([]models.Grant, 0, len(grants))
	for _, g := range grants {
		if g.IsOpen(today) && filters.Matches(g) {
			out = append(out, g)
		}
	}
	SortByDeadline(out)
	return out, nil
}

// SortByDeadline orders grants by ascending deadline, rolling grants last.
// The sort is stable, so equal deadlines keep the store's order.
func SortByDeadline(grants []models.Grant) {
	sort.SliceStable(grants, func(i, j int) bool {
		a, b := grants[i].Deadline, grants[j].Deadline
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

// FiltersFromCriteria derives storage filters from interpreted criteria.
// Only a single unambiguous issue area becomes a text filter.
func FiltersFromCriteria(c models.SearchCriteria) models.HardFilters {
	var f models.HardFilters
	if len(c.IssueAreas) == 1 {
		f.IssueArea = c.IssueAreas[0]
	}
	if c.Scope != nil {
		f.Scope = *c.Scope
	}
	f.FundingMin = c.FundingMin
	f.FundingMax = c.FundingMax
	return f
}
