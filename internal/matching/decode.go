package matching

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/david/grant-matcher/internal/ai"
)

// Score responses come in two shapes: a bare array of entries, or an object
// with one array-valued member holding the entries. Anything else is an
// error.

var wrapperKeys = []string{"scores", "results", "grants", "matches"}

// ScoreEntry is one decoded assessment before it is tied to a grant.
type ScoreEntry struct {
	ID            string
	Index         int // 1-based, 0 when absent
	Score         float64
	HasScore      bool
	WhyMatches    []string
	WhyNotMatches []string
}

type rawScoreEntry struct {
	ID                 string      `json:"id"`
	GrantID            string      `json:"grant_id"`
	GrantIDCamel       string      `json:"grantId"`
	Index              flexNumber  `json:"index"`
	Score              flexNumber  `json:"score"`
	WhyMatches         flexStrings `json:"why_matches"`
	WhyMatchesCamel    flexStrings `json:"whyMatches"`
	WhyNotMatches      flexStrings `json:"why_not_matches"`
	WhyNotMatchesCamel flexStrings `json:"whyNotMatches"`
}

// DecodeScoreResponse parses a completion into score entries.
func DecodeScoreResponse(raw string) ([]ScoreEntry, error) {
	cleaned := []byte(strings.TrimSpace(ai.CleanJSONResponse(raw)))
	if len(cleaned) == 0 {
		return nil, errors.New("empty score response")
	}

	var items []rawScoreEntry
	switch cleaned[0] {
	case '[':
		if err := json.Unmarshal(cleaned, &items); err != nil {
			return nil, fmt.Errorf("decode score array: %w", err)
		}
	case '{':
		arr, err := unwrapArray(cleaned)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(arr, &items); err != nil {
			return nil, fmt.Errorf("decode wrapped score array: %w", err)
		}
	default:
		return nil, fmt.Errorf("score response is neither an array nor an object: %.40q", cleaned)
	}

	entries := make([]ScoreEntry, 0, len(items))
	for _, it := range items {
		e := ScoreEntry{
			ID:            firstNonEmpty(it.GrantID, it.GrantIDCamel, it.ID),
			Score:         it.Score.value,
			HasScore:      it.Score.set,
			WhyMatches:    it.WhyMatches.or(it.WhyMatchesCamel),
			WhyNotMatches: it.WhyNotMatches.or(it.WhyNotMatchesCamel),
		}
		if it.Index.set {
			e.Index = int(it.Index.value)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func unwrapArray(obj []byte) (json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(obj, &members); err != nil {
		return nil, fmt.Errorf("decode score object: %w", err)
	}

	var arrays []string
	for k, v := range members {
		if t := bytes.TrimSpace(v); len(t) > 0 && t[0] == '[' {
			arrays = append(arrays, k)
		}
	}
	if len(arrays) == 1 {
		return members[arrays[0]], nil
	}
	for _, k := range wrapperKeys {
		if v, ok := members[k]; ok {
			if t := bytes.TrimSpace(v); len(t) > 0 && t[0] == '[' {
				return v, nil
			}
		}
	}
	if len(arrays) == 0 {
		return nil, errors.New("score object does not wrap an array")
	}
	return nil, fmt.Errorf("score object wraps %d ambiguous arrays", len(arrays))
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	n.value, n.set = v, true
	return nil
}

// flexStrings accepts a list of strings or a single string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*f = []string{one}
		}
		return nil
	}
	return nil
}

func (f flexStrings) or(alt flexStrings) []string {
	src := f
	if len(src) == 0 {
		src = alt
	}
	out := []string{}
	for _, s := range src {
		if s = normalizeSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
