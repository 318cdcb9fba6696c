// Package redis caches the card catalog in front of a slower source.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"cardarena/internal/game/card"
	"cardarena/internal/ports"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

const catalogKey = "arena:catalog:v1"

// CachedCatalog is a cache-aside decorator: the full card list lives in Redis with a
// TTL and draws are made locally from it. Redis failures fall through to the source.
type CachedCatalog struct {
	client *redis.Client
	source ports.Catalog
	ttl    time.Duration
	logger hclog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCachedCatalog wraps source with a Redis copy of its card list kept for ttl.
func NewCachedCatalog(client *redis.Client, source ports.Catalog, ttl time.Duration, logger hclog.Logger) *CachedCatalog {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &CachedCatalog{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

// Connect builds a client for addr and checks it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return c, nil
}

// AllCards reads the cached list, loading it from the source on a miss.
func (c *CachedCatalog) AllCards(ctx context.Context) ([]card.Card, error) {
	data, err := c.client.Get(ctx, catalogKey).Bytes()
	switch {
	case err == nil:
		var cards []card.Card
		if jerr := json.Unmarshal(data, &cards); jerr == nil {
			return cards, nil
		}
		c.logger.Warn("discarding corrupt catalog cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("catalog cache read failed", "error", err)
	}

	cards, err := c.source.AllCards(ctx)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, cards)
	return cards, nil
}

func (c *CachedCatalog) DrawRandomCards(ctx context.Context, n int, exclude []int64) ([]card.Card, error) {
	all, err := c.AllCards(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return card.Draw(c.rng, all, n, exclude), nil
}

// InvalidateCatalog drops the cached card list so the next read goes to the source.
// Run it after the cards table changes.
func InvalidateCatalog(ctx context.Context, client *redis.Client) error {
	return client.Del(ctx, catalogKey).Err()
}

func (c *CachedCatalog) fill(ctx context.Context, cards []card.Card) {
	data, err := json.Marshal(cards)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, catalogKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "error", err)
	}
}
