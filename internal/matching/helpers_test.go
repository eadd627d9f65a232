package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/config"
	"github.com/david/grant-matcher/internal/models"
)

var testToday = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

var promptGrantRe = regexp.MustCompile(`\[(\d+)\] id=([0-9a-f-]{36})`)

func grantID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

func day(offset int) *time.Time {
	d := testToday.AddDate(0, 0, offset)
	return &d
}

func money(v float64) *float64 { return &v }

func newGrant(name, area string, deadline *time.Time) models.Grant {
	return models.Grant{
		ID:          grantID(name),
		Title:       name,
		Description: "<p>Support for <b>" + name + "</b></p>",
		IssueArea:   area,
		Scope:       models.ScopeNational,
		Deadline:    deadline,
		IsActive:    true,
	}
}

// fakeCompleter answers interpretation prompts with criteria JSON and
// scoring prompts through scoreFn.
type fakeCompleter struct {
	mu          sync.Mutex
	interpret   string
	interpErr   error
	scoreFn     func(call int, ids []uuid.UUID) (string, error)
	scoreCalls  int
	interpCalls int
}

func (f *fakeCompleter) GenerateCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if strings.Contains(prompt, "Convert the funding request") {
		f.mu.Lock()
		f.interpCalls++
		f.mu.Unlock()
		if f.interpErr != nil {
			return "", f.interpErr
		}
		if f.interpret == "" {
			return `{"issue_areas":[],"keywords":[],"confidence":0.6}`, nil
		}
		return f.interpret, nil
	}

	f.mu.Lock()
	f.scoreCalls++
	call := f.scoreCalls
	f.mu.Unlock()

	var ids []uuid.UUID
	for _, m := range promptGrantRe.FindAllStringSubmatch(prompt, -1) {
		ids = append(ids, uuid.MustParse(m[2]))
	}
	if f.scoreFn == nil {
		return scoresJSON(ids, func(uuid.UUID) int { return 50 }), nil
	}
	return f.scoreFn(call, ids)
}

func (f *fakeCompleter) calls() (interp, score int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interpCalls, f.scoreCalls
}

type scoreEntryJSON struct {
	GrantID       string   `json:"grant_id"`
	Index         int      `json:"index"`
	Score         int      `json:"score"`
	WhyMatches    []string `json:"why_matches"`
	WhyNotMatches []string `json:"why_not_matches"`
}

func scoresJSON(ids []uuid.UUID, score func(uuid.UUID) int) string {
	entries := make([]scoreEntryJSON, 0, len(ids))
	for i, id := range ids {
		entries = append(entries, scoreEntryJSON{
			GrantID:       id.String(),
			Index:         i + 1,
			Score:         score(id),
			WhyMatches:    []string{fmt.Sprintf("fit %d", i+1)},
			WhyNotMatches: []string{},
		})
	}
	out, _ := json.Marshal(map[string]any{"scores": entries})
	return string(out)
}

func scoreTable(byID map[uuid.UUID]int) func(call int, ids []uuid.UUID) (string, error) {
	return func(_ int, ids []uuid.UUID) (string, error) {
		return scoresJSON(ids, func(id uuid.UUID) int { return byID[id] }), nil
	}
}

type memGrantStore struct {
	mu     sync.Mutex
	grants []models.Grant
	err    error
	calls  int
}

func (m *memGrantStore) ListActiveGrants(_ context.Context, filters models.HardFilters) ([]models.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Grant
	for _, g := range m.grants {
		if filters.Matches(g) {
			out = append(out, g)
		}
	}
	return out, nil
}

type memPrefStore map[uuid.UUID]*models.UserMatchPreferences

func (m memPrefStore) GetUserPreferences(_ context.Context, userID uuid.UUID) (*models.UserMatchPreferences, error) {
	return m[userID], nil
}

func testPool(t *testing.T, completers ...ai.Completer) *ai.Pool {
	t.Helper()
	creds := make([]*ai.Credential, 0, len(completers))
	for i, c := range completers {
		creds = append(creds, ai.NewCredential(fmt.Sprintf("cred-%d", i), c, 0))
	}
	pool, err := ai.NewPool(creds...)
	require.NoError(t, err)
	return pool
}

func testMatchingConfig() config.MatchingConfig {
	cfg := config.Default().Matching
	cfg.RetryBaseDelay = time.Millisecond
	cfg.BatchTimeout = 2 * time.Second
	cfg.InterpretTimeout = 2 * time.Second
	return cfg
}

func testRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}
