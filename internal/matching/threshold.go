package matching

import "github.com/david/grant-matcher/internal/models"

type ThresholdPolicy struct {
	MinScore        int
	GoodMatchScore  int
	PruneBelowScore int
}

// ApplyThreshold drops weak matches only when at least one grant reaches
// the good-match bar; otherwise the whole ranking is returned. A non-empty
// input never yields an empty result. Order is preserved.
func ApplyThreshold(scores []models.GrantScore, p ThresholdPolicy) []models.GrantScore {
	if len(scores) == 0 {
		return []models.GrantScore{}
	}

	hasGood := false
	for _, s := range scores {
		if s.Score >= p.GoodMatchScore {
			hasGood = true
			break
		}
	}
	if !hasGood {
		return scores
	}

	cut := max(p.MinScore, p.PruneBelowScore)
	kept := make([]models.GrantScore, 0, len(scores))
	for _, s := range scores {
		if s.Score >= cut {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return scores
	}
	return kept
}
