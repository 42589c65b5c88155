package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTTL is how long a loaded catalog is served before reloading.
const DefaultTTL = 5 * time.Minute

const catalogKey = "catalog"

// Loader produces the full model list.
type Loader func(ctx context.Context) ([]Model, error)

// StaticLoader serves Static.
func StaticLoader(context.Context) ([]Model, error) {
	return Static(), nil
}

// Cache memoises a Loader for a fixed TTL. Each Cache is independent; there
// is no process-wide catalog state.
type Cache struct {
	load Loader
	ttl  time.Duration

	mu  sync.Mutex
	lru *expirable.LRU[string, []Model]
}

// NewCache returns a Cache over load. A non-positive ttl uses DefaultTTL.
func NewCache(load Loader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		load: load,
		ttl:  ttl,
		lru:  expirable.NewLRU[string, []Model](1, nil, ttl),
	}
}

// TTL returns the cache lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the catalog, loading it when missing or expired.
func (c *Cache) Get(ctx context.Context) ([]Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if list, ok := c.lru.Get(catalogKey); ok {
		return clone(list), nil
	}

	list, err := c.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading model catalog: %w", err)
	}
	c.lru.Add(catalogKey, list)
	return clone(list), nil
}

// Invalidate drops the cached catalog so the next Get reloads it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
}

// Lookup returns the model with the given id.
func (c *Cache) Lookup(ctx context.Context, id string) (Model, bool, error) {
	list, err := c.Get(ctx)
	if err != nil {
		return Model{}, false, err
	}
	for _, m := range list {
		if m.ID == id {
			return m, true, nil
		}
	}
	return Model{}, false, nil
}

// WithAccessFlags returns free models first, marked accessible, followed by
// every other model marked inaccessible.
func (c *Cache) WithAccessFlags(ctx context.Context) ([]Model, error) {
	list, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}

	free := make([]Model, 0, len(FreeModelIDs))
	pro := make([]Model, 0, len(list))
	for _, m := range list {
		m.Accessible = IsFree(m.ID)
		if m.Accessible {
			free = append(free, m)
		} else {
			pro = append(pro, m)
		}
	}
	return append(free, pro...), nil
}

// ForProvider returns the models of one provider, all marked accessible.
func (c *Cache) ForProvider(ctx context.Context, providerID string) ([]Model, error) {
	list, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Model, 0, len(list))
	for _, m := range list {
		if m.ProviderID == providerID {
			m.Accessible = true
			out = append(out, m)
		}
	}
	return out, nil
}

func clone(list []Model) []Model {
	out := make([]Model, len(list))
	copy(out, list)
	return out
}
