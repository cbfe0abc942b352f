package source

import (
	"context"
	"sync"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// cachedScore memoizes one lookup result. Negative results (no logs for the
// character) are cached too, so repeated items in a zone run never refetch
// a character known to have nothing.
type cachedScore struct {
	score model.ParseScore
	found bool
}

// CachedParseSource wraps a ParseSource with per-(zone, character)
// memoization. Safe for concurrent use: the orchestrator warms it from a
// prefetch goroutine while an LLM call is in flight.
type CachedParseSource struct {
	inner ParseSource

	mu     sync.RWMutex
	cache  map[string]cachedScore
	metric map[string]string // zone -> metric label from the first fetch
}

// NewCachedParseSource wraps inner with an empty cache.
func NewCachedParseSource(inner ParseSource) *CachedParseSource {
	return &CachedParseSource{
		inner:  inner,
		cache:  make(map[string]cachedScore),
		metric: make(map[string]string),
	}
}

func cacheKey(zone string, id model.Identity) string {
	return zone + "|" + id.Key()
}

// FetchParses returns cached scores where present and fetches only the
// missing characters. Results, including absences, are cached for the
// lifetime of the wrapper (one session).
func (c *CachedParseSource) FetchParses(ctx context.Context, ids []model.Identity, zone string) (model.ParseSnapshot, error) {
	snapshot := model.ParseSnapshot{
		Zone:   zone,
		Scores: make(map[string]model.ParseScore, len(ids)),
	}

	var missing []model.Identity
	c.mu.RLock()
	for _, id := range ids {
		if entry, ok := c.cache[cacheKey(zone, id)]; ok {
			if entry.found {
				snapshot.Scores[id.Key()] = entry.score
			}
		} else {
			missing = append(missing, id)
		}
	}
	snapshot.Metric = c.metric[zone]
	c.mu.RUnlock()

	if len(missing) == 0 {
		return snapshot, nil
	}

	fetched, err := c.inner.FetchParses(ctx, missing, zone)
	if err != nil {
		return model.ParseSnapshot{}, err
	}

	c.mu.Lock()
	if fetched.Metric != "" {
		c.metric[zone] = fetched.Metric
	}
	for _, id := range missing {
		score, ok := fetched.Scores[id.Key()]
		c.cache[cacheKey(zone, id)] = cachedScore{score: score, found: ok}
		if ok {
			snapshot.Scores[id.Key()] = score
		}
	}
	snapshot.Metric = c.metric[zone]
	c.mu.Unlock()

	return snapshot, nil
}

// Warm prefetches scores for the given characters, populating the cache so
// a later FetchParses call is served locally. Errors are returned so the
// caller can log them; the cache stays consistent either way.
func (c *CachedParseSource) Warm(ctx context.Context, ids []model.Identity, zone string) error {
	_, err := c.FetchParses(ctx, ids, zone)
	return err
}

// Cached reports whether a character's score for the zone is already known.
func (c *CachedParseSource) Cached(zone string, id model.Identity) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[cacheKey(zone, id)]
	return ok
}
