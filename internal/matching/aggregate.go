package matching

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/david/grant-matcher/internal/models"
)

// MergeBatchScores flattens batch results in batch order, drops ids outside
// the candidate set and keeps the highest score per grant.
func MergeBatchScores(batches []BatchResult, candidates []models.Grant) []models.GrantScore {
	known := make(map[uuid.UUID]bool, len(candidates))
	for _, g := range candidates {
		known[g.ID] = true
	}

	pos := map[uuid.UUID]int{}
	merged := []models.GrantScore{}
	for _, b := range batches {
		for _, s := range b.Scores {
			if !known[s.GrantID] {
				continue
			}
			if i, ok := pos[s.GrantID]; ok {
				if s.Score > merged[i].Score {
					merged[i] = s.Clone()
				}
				continue
			}
			pos[s.GrantID] = len(merged)
			merged = append(merged, s.Clone())
		}
	}
	return merged
}

// ApplyPreferenceBoost raises grants whose issue area contains one of the
// preferred areas, case-insensitively. The boost is applied once per grant.
func ApplyPreferenceBoost(scores []models.GrantScore, prefs *models.UserMatchPreferences, candidates []models.Grant, boost int) {
	if prefs == nil || len(prefs.IssueAreas) == 0 || boost == 0 {
		return
	}
	areaOf := make(map[uuid.UUID]string, len(candidates))
	for _, g := range candidates {
		areaOf[g.ID] = strings.ToLower(g.IssueArea)
	}

	for i := range scores {
		area := areaOf[scores[i].GrantID]
		if area == "" {
			continue
		}
		for _, pref := range prefs.IssueAreas {
			p := strings.ToLower(strings.TrimSpace(pref))
			if p == "" || !strings.Contains(area, p) {
				continue
			}
			scores[i].Score = models.ClampScore(scores[i].Score + boost)
			scores[i].WhyMatches = append(scores[i].WhyMatches, "Matches your organization's focus on "+strings.TrimSpace(pref))
			break
		}
	}
}

// SortByScore orders scores descending; ties keep their prior order.
func SortByScore(scores []models.GrantScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
}

// RankScores boosts and sorts merged scores in place. Merged scores are
// cached without the boost, so ranking runs after every cache lookup.
func RankScores(scores []models.GrantScore, prefs *models.UserMatchPreferences, candidates []models.Grant, boost int) []models.GrantScore {
	ApplyPreferenceBoost(scores, prefs, candidates, boost)
	SortByScore(scores)
	return scores
}
