package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Grant scopes.
const (
	ScopeLocal         = "local"
	ScopeNational      = "national"
	ScopeInternational = "international"
)

type Grant struct {
	ID          uuid.UUID  `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	IssueArea   string     `json:"issue_area" yaml:"issue_area"`
	Scope       string     `json:"scope" yaml:"scope"`
	FundingMin  *float64   `json:"funding_min" yaml:"funding_min"`
	FundingMax  *float64   `json:"funding_max" yaml:"funding_max"`
	Deadline    *time.Time `json:"deadline" yaml:"deadline"`
	Eligibility string     `json:"eligibility" yaml:"eligibility"`
	FunderName  string     `json:"funder_name" yaml:"funder_name"`
	FunderURL   string     `json:"funder_url" yaml:"funder_url"`
	SourceURL   string     `json:"source_url" yaml:"source_url"`
	IsActive    bool       `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// IsOpen reports whether the grant can still be applied to on the calendar
// day of today. A grant without a deadline is rolling and stays open.
func (g Grant) IsOpen(today time.Time) bool {
	if !g.IsActive {
		return false
	}
	if g.Deadline == nil {
		return true
	}
	return !DeadlineDate(*g.Deadline).Before(dateOf(today))
}

// DeadlineDate is the calendar day a deadline falls on. Dates read from
// storage arrive as UTC midnight and keep that day whatever zone they were
// moved into; any other instant counts in its own zone.
func DeadlineDate(t time.Time) time.Time {
	if u := t.UTC(); u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return dateOf(u)
	}
	return dateOf(t)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// HardFilters narrow the candidate set before any scoring happens.
type HardFilters struct {
	IssueArea  string   `json:"issue_area" query:"issue_area"`
	Scope      string   `json:"scope" query:"scope"`
	FundingMin *float64 `json:"min_funding" query:"min_funding"`
	FundingMax *float64 `json:"max_funding" query:"max_funding"`
}

func (f HardFilters) IsZero() bool {
	return strings.TrimSpace(f.IssueArea) == "" && strings.TrimSpace(f.Scope) == "" &&
		f.FundingMin == nil && f.FundingMax == nil
}

// Matches applies the filter predicate in memory. Text filters are
// case-insensitive substring matches; funding bounds match when the grant's
// range overlaps the requested one, and a missing grant bound never excludes.
func (f HardFilters) Matches(g Grant) bool {
	if v := strings.TrimSpace(f.IssueArea); v != "" && !containsFold(g.IssueArea, v) {
		return false
	}
	if v := strings.TrimSpace(f.Scope); v != "" && !containsFold(g.Scope, v) {
		return false
	}
	if f.FundingMin != nil && g.FundingMax != nil && *g.FundingMax < *f.FundingMin {
		return false
	}
	if f.FundingMax != nil && g.FundingMin != nil && *g.FundingMin > *f.FundingMax {
		return false
	}
	return true
}

// Describe lists the filters the grant satisfied, in a fixed order.
func (f HardFilters) Describe(g Grant) []string {
	reasons := []string{}
	if v := strings.TrimSpace(f.IssueArea); v != "" && containsFold(g.IssueArea, v) {
		reasons = append(reasons, "Issue area matches \""+v+"\"")
	}
	if v := strings.TrimSpace(f.Scope); v != "" && containsFold(g.Scope, v) {
		reasons = append(reasons, "Scope matches \""+v+"\"")
	}
	if f.FundingMin != nil || f.FundingMax != nil {
		reasons = append(reasons, "Funding range overlaps the requested amount")
	}
	return reasons
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
