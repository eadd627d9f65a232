package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/models"
)

const fallbackConfidence = 0.1

// Interpreter turns free text into SearchCriteria. It never fails: any
// problem with the completion service yields keyword criteria instead.
type Interpreter struct {
	pool    *ai.Pool
	retry   RetryPolicy
	timeout time.Duration
	now     func() time.Time
}

func NewInterpreter(pool *ai.Pool, retry RetryPolicy, timeout time.Duration) *Interpreter {
	return &Interpreter{pool: pool, retry: retry, timeout: timeout, now: time.Now}
}

type interpretedQuery struct {
	IssueAreas       []string `json:"issue_areas"`
	FundingMin       *float64 `json:"funding_min"`
	FundingMax       *float64 `json:"funding_max"`
	Scope            *string  `json:"scope"`
	Urgency          *string  `json:"urgency"`
	DeadlineBefore   *string  `json:"deadline_before"`
	Keywords         []string `json:"keywords"`
	OrganizationType *string  `json:"organization_type"`
	KPIPreferences   []string `json:"kpi_preferences"`
	Exclusions       []string `json:"exclusions"`
	Confidence       *float64 `json:"confidence"`
}

func (in *Interpreter) Interpret(ctx context.Context, text string) models.SearchCriteria {
	cred := in.pool.Next()
	prompt := buildInterpretPrompt(text, in.now())

	raw, _, err := Retry(ctx, in.retry, func(ctx context.Context) (string, error) {
		if in.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, in.timeout)
			defer cancel()
		}
		return cred.GenerateCompletion(ctx, prompt, true)
	})
	if err != nil {
		log.Printf("[interpreter] %s failed, using keyword fallback: %v", cred.Name, err)
		interpreterFallbacksTotal.Inc()
		return FallbackCriteria(text)
	}

	criteria, err := parseInterpretation(raw, text)
	if err != nil {
		log.Printf("[interpreter] unusable response from %s, using keyword fallback: %v", cred.Name, err)
		interpreterFallbacksTotal.Inc()
		return FallbackCriteria(text)
	}
	return criteria
}

// FallbackCriteria derives criteria from the words of the query alone.
func FallbackCriteria(text string) models.SearchCriteria {
	keywords := []string{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if len([]rune(tok)) > 3 {
			keywords = append(keywords, tok)
		}
	}
	c := models.SearchCriteria{
		Keywords:   keywords,
		RawQuery:   text,
		Confidence: fallbackConfidence,
	}
	c.Normalize()
	return c
}

func parseInterpretation(raw, text string) (models.SearchCriteria, error) {
	var q interpretedQuery
	if err := json.Unmarshal([]byte(ai.CleanJSONResponse(raw)), &q); err != nil {
		return models.SearchCriteria{}, fmt.Errorf("decode criteria: %w", err)
	}

	c := models.SearchCriteria{
		IssueAreas:       canonicalIssueAreas(q.IssueAreas),
		FundingMin:       nonNegative(q.FundingMin),
		FundingMax:       nonNegative(q.FundingMax),
		Scope:            oneOf(q.Scope, models.ScopeLocal, models.ScopeNational, models.ScopeInternational),
		Urgency:          oneOf(q.Urgency, models.UrgencyImmediate, models.UrgencySoon, models.UrgencyFlexible),
		Keywords:         cleanList(q.Keywords, true),
		OrganizationType: nonBlank(q.OrganizationType),
		KPIPreferences:   cleanList(q.KPIPreferences, false),
		Exclusions:       cleanList(q.Exclusions, false),
		RawQuery:         text,
		Confidence:       0.5,
	}
	if q.Confidence != nil {
		c.Confidence = *q.Confidence
	}
	if c.FundingMin != nil && c.FundingMax != nil && *c.FundingMin > *c.FundingMax {
		c.FundingMin, c.FundingMax = c.FundingMax, c.FundingMin
	}
	if q.DeadlineBefore != nil {
		if d, err := time.Parse("2006-01-02", strings.TrimSpace(*q.DeadlineBefore)); err == nil {
			c.DeadlineBefore = &d
		}
	}
	c.Normalize()
	return c, nil
}

// canonicalIssueAreas folds names onto the known list case-insensitively
// and keeps unknown areas as written.
func canonicalIssueAreas(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, area := range in {
		area = normalizeSpace(area)
		if area == "" {
			continue
		}
		for _, known := range models.IssueAreas {
			if strings.EqualFold(known, area) {
				area = known
				break
			}
		}
		key := strings.ToLower(area)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, area)
	}
	return out
}

func cleanList(in []string, lower bool) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range in {
		s = normalizeSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

func oneOf(v *string, allowed ...string) *string {
	if v == nil {
		return nil
	}
	s := strings.ToLower(strings.TrimSpace(*v))
	for _, a := range allowed {
		if s == a {
			return &s
		}
	}
	return nil
}

func nonBlank(v *string) *string {
	if v == nil {
		return nil
	}
	s := normalizeSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func buildInterpretPrompt(text string, now time.Time) string {
	return fmt.Sprintf(`You are an expert grant advisor. Convert the funding request below into structured search criteria.

Today's date: %s
Known issue areas: %s

Request:
%q

Instructions:
1. issue_areas: the causes the request is about, using the known issue areas when one fits.
2. funding_min / funding_max: amounts in US dollars, or null when not stated.
3. scope: "local", "national" or "international", or null.
4. urgency: "immediate", "soon" or "flexible", or null.
5. deadline_before: latest acceptable deadline as YYYY-MM-DD, or null.
6. keywords: short lowercase terms that should appear in a matching grant.
7. organization_type: the kind of applicant (e.g. "nonprofit", "school"), or null.
8. kpi_preferences: outcomes or impact measures the applicant cares about.
9. exclusions: things the applicant explicitly does not want.
10. confidence: 0.0 to 1.0, how certain you are about this interpretation.

Respond ONLY with a JSON object:
{
	"issue_areas": ["string"],
	"funding_min": number or null,
	"funding_max": number or null,
	"scope": "string or null",
	"urgency": "string or null",
	"deadline_before": "YYYY-MM-DD or null",
	"keywords": ["string"],
	"organization_type": "string or null",
	"kpi_preferences": ["string"],
	"exclusions": ["string"],
	"confidence": number
}`, now.Format("2006-01-02"), strings.Join(models.IssueAreas, ", "), text)
}
