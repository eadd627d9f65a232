package matching

import (
	"fmt"
	"strings"

	"github.com/david/grant-matcher/internal/models"
)

const (
	promptDescriptionLimit = 600
	promptEligibilityLimit = 300
)

// ScoringQuery is everything about the searcher that a scoring prompt
// carries.
type ScoringQuery struct {
	Query       string
	Criteria    models.SearchCriteria
	Preferences *models.UserMatchPreferences
}

// BuildScoringPrompt renders one batch for the relevance scorer. Grants are
// numbered from 1 so the answer can refer back by position or by id.
func BuildScoringPrompt(q ScoringQuery, batch []models.Grant) string {
	var b strings.Builder

	b.WriteString("You are an expert grant-matching analyst. Score how well each grant below fits the applicant's request.\n\n")
	fmt.Fprintf(&b, "SEARCH QUERY:\n%q\n\n", q.Query)

	b.WriteString("INTERPRETED CRITERIA:\n")
	writeList(&b, "Issue areas", q.Criteria.IssueAreas)
	fmt.Fprintf(&b, "- Funding: %s\n", FormatFundingRange(q.Criteria.FundingMin, q.Criteria.FundingMax))
	writeOptional(&b, "Scope", q.Criteria.Scope)
	writeOptional(&b, "Urgency", q.Criteria.Urgency)
	if q.Criteria.DeadlineBefore != nil {
		fmt.Fprintf(&b, "- Deadline before: %s\n", q.Criteria.DeadlineBefore.Format("2006-01-02"))
	}
	writeOptional(&b, "Organization type", q.Criteria.OrganizationType)
	writeList(&b, "Keywords", q.Criteria.Keywords)
	writeList(&b, "Desired outcomes", q.Criteria.KPIPreferences)
	writeList(&b, "Exclusions", q.Criteria.Exclusions)

	if p := q.Preferences; p != nil {
		b.WriteString("\nAPPLICANT PROFILE:\n")
		writeList(&b, "Focus areas", p.IssueAreas)
		writeOptional(&b, "Preferred scope", p.PreferredScope)
		if p.FundingMin != nil || p.FundingMax != nil {
			fmt.Fprintf(&b, "- Typical funding: %s\n", FormatFundingRange(p.FundingMin, p.FundingMax))
		}
	}

	fmt.Fprintf(&b, "\nGRANTS (%d):\n", len(batch))
	for i, g := range batch {
		fmt.Fprintf(&b, "\n[%d] id=%s\n", i+1, g.ID)
		fmt.Fprintf(&b, "Title: %s\n", normalizeSpace(g.Title))
		fmt.Fprintf(&b, "Funder: %s\n", orDash(g.FunderName))
		fmt.Fprintf(&b, "Issue area: %s\n", orDash(g.IssueArea))
		fmt.Fprintf(&b, "Scope: %s\n", orDash(g.Scope))
		fmt.Fprintf(&b, "Funding: %s\n", FormatFundingRange(g.FundingMin, g.FundingMax))
		fmt.Fprintf(&b, "Deadline: %s\n", FormatDeadline(g.Deadline))
		if e := htmlToText(g.Eligibility); e != "" {
			fmt.Fprintf(&b, "Eligibility: %s\n", truncateText(e, promptEligibilityLimit))
		}
		if d := htmlToText(g.Description); d != "" {
			fmt.Fprintf(&b, "Description: %s\n", truncateText(d, promptDescriptionLimit))
		}
	}

	b.WriteString(`
Instructions:
1. Give every grant a score from 0 (irrelevant) to 100 (ideal fit).
2. Weigh issue-area fit first, then funding fit, scope, deadline and eligibility.
3. Penalise grants that hit an exclusion.
4. why_matches: 1-3 short reasons the grant fits. why_not_matches: 0-3 short concerns.
5. Copy each grant's id exactly and include its [number] as index.

Respond ONLY with a JSON object:
{
	"scores": [
		{"grant_id": "uuid", "index": 1, "score": 0, "why_matches": ["string"], "why_not_matches": ["string"]}
	]
}`)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, ", "))
}

func writeOptional(b *strings.Builder, label string, v *string) {
	if v == nil || *v == "" {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, *v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
