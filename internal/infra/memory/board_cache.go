package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quizchain/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BoardCache keeps computed leaderboard snapshots with a TTL so hot boards
// are not recomputed on every poll. Concurrent misses for one board collapse
// into a single compute. Each key carries a generation counter bumped on
// Invalidate; a compute started before the bump may be served to its callers
// but is never stored, so an invalidation cannot be lost to an in-flight
// recompute.
type BoardCache struct {
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBoard
	gen   map[string]uint64
}

type cachedBoard struct {
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
}

func NewBoardCache(ttl time.Duration) *BoardCache {
	return &BoardCache{
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedBoard),
		gen:   make(map[string]uint64),
	}
}

func (c *BoardCache) Board(ctx context.Context, key string, compute func() ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error) {
	now := c.clock()

	c.mu.RLock()
	entry, cached := c.cache[key]
	gen := c.gen[key]
	c.mu.RUnlock()
	if cached && entry.expiresAt.After(now) {
		return copyEntries(entry.entries), nil
	}

	// The generation is part of the flight key so callers arriving after an
	// invalidation never join a flight computing the pre-invalidation board.
	result, err, _ := c.sf.Do(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.entries, nil
		}
		c.mu.RUnlock()

		entries, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen[key] == gen {
			c.cache[key] = cachedBoard{
				entries:   entries,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return copyEntries(result.([]domain.LeaderboardEntry)), nil
}

// Invalidate drops snapshots after a new attempt lands so the next read
// recomputes from current state. Bumping the generation also voids any
// compute still in flight for the key.
func (c *BoardCache) Invalidate(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.cache, key)
		c.gen[key]++
	}
}

func (c *BoardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// Callers rank entries in place, so hand each of them their own slice.
func copyEntries(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(entries))
	copy(out, entries)
	return out
}
