package foodstore

import (
	"context"
	"fmt"

	"github.com/darrellrafa/Nutribot/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached food details.
const DefaultCacheSize = 2048

// CachedStore memoizes GetByID on top of another Store. The dataset is
// read-only at request time so entries never go stale within a snapshot.
type CachedStore struct {
	Store
	items *lru.Cache[int64, domain.FoodItem]
}

// NewCachedStore wraps inner with an LRU of the given size.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[int64, domain.FoodItem](size)
	if err != nil {
		return nil, fmt.Errorf("create food cache: %w", err)
	}
	return &CachedStore{Store: inner, items: cache}, nil
}

// GetByID serves from the cache when possible. Failures are not cached.
func (c *CachedStore) GetByID(ctx context.Context, id int64) (domain.FoodItem, error) {
	if item, ok := c.items.Get(id); ok {
		return item, nil
	}
	item, err := c.Store.GetByID(ctx, id)
	if err != nil {
		return domain.FoodItem{}, err
	}
	c.items.Add(id, item)
	return item, nil
}

// Len reports the number of cached entries.
func (c *CachedStore) Len() int {
	return c.items.Len()
}
