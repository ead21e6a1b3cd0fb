package homes

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"energy-advisor/internal/shared/metrics"
)

// LRUCache is a read-through in-process cache in front of another Repo.
// Homes are immutable once created so entries never need invalidation.
type LRUCache struct {
	next  Repo
	cache *lru.Cache[string, Home]
}

// NewLRUCache wraps next with an LRU of the given size.
func NewLRUCache(next Repo, size int) (*LRUCache, error) {
	if next == nil {
		return nil, fmt.Errorf("homes: lru cache requires a backing repo")
	}
	cache, err := lru.New[string, Home](size)
	if err != nil {
		return nil, fmt.Errorf("homes: lru cache: %w", err)
	}
	return &LRUCache{next: next, cache: cache}, nil
}

// Create writes through to the backing repo and primes the cache.
func (c *LRUCache) Create(ctx context.Context, home Home) error {
	if err := c.next.Create(ctx, home); err != nil {
		return err
	}
	c.cache.Add(home.ID, home)
	return nil
}

// GetByID serves from the cache and falls back to the backing repo.
func (c *LRUCache) GetByID(ctx context.Context, homeID string) (Home, error) {
	if home, ok := c.cache.Get(homeID); ok {
		metrics.ObserveCacheLookup("lru", true)
		return home, nil
	}
	metrics.ObserveCacheLookup("lru", false)
	home, err := c.next.GetByID(ctx, homeID)
	if err != nil {
		return Home{}, err
	}
	c.cache.Add(homeID, home)
	return home, nil
}

var _ Repo = (*LRUCache)(nil)
