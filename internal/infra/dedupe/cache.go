// Package dedupe keeps a bounded in-process set of recently seen event ids.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"

	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/infra/metrics"
)

var _ adapter.Deduper = (*Cache)(nil)

type entry struct {
	key  string
	seen time.Time
}

// Cache expires ids after ttl and evicts the oldest once maxSize is reached.
// All entries share one ttl, so the list front is always the oldest.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Claim reports true the first time key is seen within ttl.
func (c *Cache) Claim(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expire(now)
	if _, ok := c.index[key]; ok {
		metrics.IncDedupeRequest("memory", "duplicate")
		return false, nil
	}
	for len(c.index) >= c.maxSize {
		c.remove(c.order.Front())
	}
	c.index[key] = c.order.PushBack(&entry{key: key, seen: now})
	metrics.IncDedupeRequest("memory", "new")
	return true, nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *Cache) expire(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		if now.Sub(front.Value.(*entry).seen) < c.ttl {
			return
		}
		c.remove(front)
	}
}

func (c *Cache) remove(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.index, el.Value.(*entry).key)
}
