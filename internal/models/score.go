package models

import "github.com/google/uuid"

type GrantScore struct {
	GrantID       uuid.UUID `json:"grant_id"`
	Score         int       `json:"score"`
	WhyMatches    []string  `json:"why_matches"`
	WhyNotMatches []string  `json:"why_not_matches"`
	// Degraded marks scores that were assigned without an AI assessment.
	Degraded bool `json:"degraded"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Clone returns a copy that shares no slices with s.
func (s GrantScore) Clone() GrantScore {
	out := s
	out.WhyMatches = append([]string{}, s.WhyMatches...)
	out.WhyNotMatches = append([]string{}, s.WhyNotMatches...)
	return out
}

// ScoredGrant is a grant joined with its per-search score. It is never
// persisted.
type ScoredGrant struct {
	Grant
	Score         int      `json:"score"`
	WhyMatches    []string `json:"why_matches"`
	WhyNotMatches []string `json:"why_not_matches"`
	Degraded      bool     `json:"degraded"`
}

func NewScoredGrant(g Grant, s GrantScore) ScoredGrant {
	sg := ScoredGrant{
		Grant:         g,
		Score:         s.Score,
		WhyMatches:    s.WhyMatches,
		WhyNotMatches: s.WhyNotMatches,
		Degraded:      s.Degraded,
	}
	if sg.WhyMatches == nil {
		sg.WhyMatches = []string{}
	}
	if sg.WhyNotMatches == nil {
		sg.WhyNotMatches = []string{}
	}
	return sg
}
