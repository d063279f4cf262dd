package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const defaultLRUSize = 10000

// LRUCache is a size-bounded in-process cache. Expired entries are dropped
// lazily on read and are the first to go when the cache is full.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
	now      func() time.Time
}

type lruEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// NewLRUCache creates an LRU holding at most capacity entries.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = defaultLRUSize
	}
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key, or nil on a miss.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	k, err := entryKey(tenantID, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		return nil, nil
	}
	e := el.Value.(*lruEntry)
	if !c.now().Before(e.expires) {
		c.drop(el)
		return nil, nil
	}
	c.recency.MoveToFront(el)
	return e.value, nil
}

// Set stores value until ttl elapses, evicting the least recently used
// entry when the cache is full.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	k, err := entryKey(tenantID, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(ttl)
	if el, ok := c.entries[k]; ok {
		e := el.Value.(*lruEntry)
		e.value, e.expires = value, expires
		c.recency.MoveToFront(el)
		return nil
	}

	c.entries[k] = c.recency.PushFront(&lruEntry{key: k, value: value, expires: expires})
	for len(c.entries) > c.capacity {
		c.evict()
	}
	return nil
}

// Delete removes key if present.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	k, err := entryKey(tenantID, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		c.drop(el)
	}
	return nil
}

// GetAssessment returns a cached assessment or nil.
func (c *LRUCache) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	return getAssessment(ctx, c, tenantID, assessmentID)
}

// SetAssessment caches an assessment.
func (c *LRUCache) SetAssessment(ctx context.Context, tenantID string, a *domain.Assessment, ttl time.Duration) error {
	return setAssessment(ctx, c, tenantID, a, ttl)
}

func (c *LRUCache) Ping(ctx context.Context) error { return nil }

// Close empties the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.recency.Init()
	return nil
}

// Stats returns the number of entries held and the capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.capacity
}

// evictScan bounds how far evict looks from the tail for an expired entry.
const evictScan = 8

// evict drops an expired entry near the tail if there is one, otherwise the
// least recently used entry.
func (c *LRUCache) evict() {
	now := c.now()
	el := c.recency.Back()
	for i := 0; el != nil && i < evictScan; i, el = i+1, el.Prev() {
		if !now.Before(el.Value.(*lruEntry).expires) {
			c.drop(el)
			return
		}
	}
	c.drop(c.recency.Back())
}

func (c *LRUCache) drop(el *list.Element) {
	c.recency.Remove(el)
	delete(c.entries, el.Value.(*lruEntry).key)
}
