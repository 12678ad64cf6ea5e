package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quizchain/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BoardCache stores leaderboard snapshots in Redis as JSON values:
// SET {key} [{entry},...] EX ttl. On cache miss the compute callback
// rebuilds the board from engine state; concurrent misses for one board
// collapse into a single compute. A per-key generation counter, bumped on
// Invalidate, keeps a compute that started before the invalidation from
// writing its stale snapshot back.
type BoardCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand

	mu  sync.Mutex
	gen map[string]uint64
}

func NewBoardCache(client *redis.Client, ttl time.Duration) *BoardCache {
	return &BoardCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		gen:    make(map[string]uint64),
	}
}

func (c *BoardCache) Board(ctx context.Context, key string, compute func() ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.get(ctx, key); ok {
		return entries, nil
	}
	gen := c.generation(key)

	// The generation is part of the flight key so callers arriving after an
	// invalidation never join a flight computing the pre-invalidation board.
	result, err, _ := c.sf.Do(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if entries, ok := c.get(ctx, key); ok {
			return entries, nil
		}

		entries, err := compute()
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		// Best-effort write; a failed SET only costs a recompute later. An
		// invalidation that landed mid-compute voids the write, and the
		// re-check after SET catches one racing the write itself.
		if c.generation(key) == gen {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
			if c.generation(key) != gen {
				_ = c.client.Del(ctx, key).Err()
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers rank entries in place and singleflight shares one result
	// between concurrent callers, so hand each its own slice.
	entries := result.([]domain.LeaderboardEntry)
	out := make([]domain.LeaderboardEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Invalidate deletes snapshot keys after a new attempt lands. The
// generation bump must precede the DEL so an in-flight compute observing
// the old generation never stores over the deletion.
func (c *BoardCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	for _, key := range keys {
		c.gen[key]++
	}
	c.mu.Unlock()
	_ = c.client.Del(ctx, keys...).Err()
}

func (c *BoardCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

func (c *BoardCache) get(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *BoardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
