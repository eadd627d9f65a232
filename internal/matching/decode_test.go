package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScoreResponse_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []ScoreEntry
	}{
		{
			name: "bare array",
			raw:  `[{"grant_id":"g-1","index":1,"score":82,"why_matches":["mission fit"],"why_not_matches":[]}]`,
			want: []ScoreEntry{{ID: "g-1", Index: 1, Score: 82, HasScore: true, WhyMatches: []string{"mission fit"}, WhyNotMatches: []string{}}},
		},
		{
			name: "wrapped under any single key",
			raw:  "```json\n{\"evaluations\": [{\"id\":\"g-2\",\"score\":\"64\",\"whyMatches\":\"local focus\"}]}\n```",
			want: []ScoreEntry{{ID: "g-2", Score: 64, HasScore: true, WhyMatches: []string{"local focus"}, WhyNotMatches: []string{}}},
		},
		{
			name: "known key among several arrays",
			raw:  `{"notes":["x"],"scores":[{"index":2,"score":40}]}`,
			want: []ScoreEntry{{Index: 2, Score: 40, HasScore: true, WhyMatches: []string{}, WhyNotMatches: []string{}}},
		},
		{
			name: "empty array",
			raw:  `{"scores": []}`,
			want: []ScoreEntry{},
		},
		{
			name: "missing score",
			raw:  `[{"grant_id":"g-3"}]`,
			want: []ScoreEntry{{ID: "g-3", WhyMatches: []string{}, WhyNotMatches: []string{}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeScoreResponse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeScoreResponse_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":           "",
		"prose":           "All grants look great!",
		"object no array": `{"grant_id":"g-1","score":70}`,
		"ambiguous":       `{"a":[{"score":1}],"b":[{"score":2}]}`,
		"array of numbers": `[80, 20]`,
		"truncated":       `{"scores": [{"score": 80}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeScoreResponse(raw)
			assert.Error(t, err)
		})
	}
}
