package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Urgency levels a query can express.
const (
	UrgencyImmediate = "immediate"
	UrgencySoon      = "soon"
	UrgencyFlexible  = "flexible"
)

// IssueAreas is the canonical list interpreted criteria are folded onto.
var IssueAreas = []string{
	"Arts & Culture",
	"Community Development",
	"Disaster Relief",
	"Economic Development",
	"Education",
	"Environment",
	"Health",
	"Housing",
	"Human Rights",
	"Hunger",
	"Research",
	"Technology",
	"Youth",
}

// SearchCriteria is the structured form of a free-text search. Every field
// is always present in its JSON form; absent values are null or empty lists.
type SearchCriteria struct {
	IssueAreas       []string   `json:"issue_areas"`
	FundingMin       *float64   `json:"funding_min"`
	FundingMax       *float64   `json:"funding_max"`
	Scope            *string    `json:"scope"`
	Urgency          *string    `json:"urgency"`
	DeadlineBefore   *time.Time `json:"deadline_before"`
	Keywords         []string   `json:"keywords"`
	OrganizationType *string    `json:"organization_type"`
	KPIPreferences   []string   `json:"kpi_preferences"`
	Exclusions       []string   `json:"exclusions"`
	RawQuery         string     `json:"raw_query"`
	Confidence       float64    `json:"confidence"`
}

// Normalize replaces nil lists with empty ones and clamps confidence into
// [0,1].
func (c *SearchCriteria) Normalize() {
	if c.IssueAreas == nil {
		c.IssueAreas = []string{}
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if c.KPIPreferences == nil {
		c.KPIPreferences = []string{}
	}
	if c.Exclusions == nil {
		c.Exclusions = []string{}
	}
	switch {
	case c.Confidence < 0:
		c.Confidence = 0
	case c.Confidence > 1:
		c.Confidence = 1
	}
}

// UserMatchPreferences is the slice of an organization profile that
// influences ranking.
type UserMatchPreferences struct {
	IssueAreas     []string `json:"issue_areas" yaml:"issue_areas"`
	PreferredScope *string  `json:"preferred_scope" yaml:"preferred_scope"`
	FundingMin     *float64 `json:"funding_min" yaml:"funding_min"`
	FundingMax     *float64 `json:"funding_max" yaml:"funding_max"`
}

// Fingerprint is a stable textual identity of the preferences, independent
// of issue-area order and case.
func (p *UserMatchPreferences) Fingerprint() string {
	if p == nil {
		return ""
	}
	areas := make([]string, 0, len(p.IssueAreas))
	for _, a := range p.IssueAreas {
		areas = append(areas, strings.ToLower(strings.TrimSpace(a)))
	}
	sort.Strings(areas)
	scope := ""
	if p.PreferredScope != nil {
		scope = strings.ToLower(*p.PreferredScope)
	}
	return fmt.Sprintf("%s;%s;%s;%s", strings.Join(areas, ","), scope, fmtBound(p.FundingMin), fmtBound(p.FundingMax))
}

func fmtBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}
