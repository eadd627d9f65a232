package matching

import (
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/david/grant-matcher/internal/models"
)

// ResultCache memoises merged scores per normalised query and candidate
// count. Entries expire after the TTL and are only noticed as stale on
// read; there is no background eviction.
type ResultCache struct {
	items *gocache.Cache
}

func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{items: gocache.New(ttl, 0)}
}

// CacheKey normalises the query by trimming and lower-casing it.
func CacheKey(query string, candidateCount int) string {
	return strings.ToLower(strings.TrimSpace(query)) + "|" + strconv.Itoa(candidateCount)
}

func (c *ResultCache) Get(query string, candidateCount int) ([]models.GrantScore, bool) {
	v, ok := c.items.Get(CacheKey(query, candidateCount))
	if !ok {
		return nil, false
	}
	return cloneScores(v.([]models.GrantScore)), true
}

// Put stores a copy of scores; a later Put for the same key wins.
func (c *ResultCache) Put(query string, candidateCount int, scores []models.GrantScore) {
	c.items.SetDefault(CacheKey(query, candidateCount), cloneScores(scores))
}

func (c *ResultCache) Len() int { return c.items.ItemCount() }

func cloneScores(in []models.GrantScore) []models.GrantScore {
	out := make([]models.GrantScore, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
