package util

import (
	"container/list"
	"sync"
)

type (
	// LRUCache holds up to a fixed number of values, evicting the least
	// recently used one when full. It is safe for concurrent use
	LRUCache[K comparable, V any] struct {
		entries map[K]*list.Element
		order   *list.List
		limit   int
		mu      sync.Mutex
	}

	lruEntry[K comparable, V any] struct {
		key   K
		value V
	}
)

// NewLRUCache creates a cache holding at most limit values
func NewLRUCache[K comparable, V any](limit int) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		entries: map[K]*list.Element{},
		order:   list.New(),
		limit:   max(limit, 1),
	}
}

// Get returns the cached value for key, calling create on a miss. Errors
// from create are returned and nothing is cached. Concurrent misses on the
// same key may each call create; the first value stored wins
func (c *LRUCache[K, V]) Get(key K, create func() (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*lruEntry[K, V]).value, nil
	}
	c.entries[key] = c.order.PushFront(&lruEntry[K, V]{key, value})
	if c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry[K, V]).key)
	}
	return value, nil
}

// Len returns the number of cached values
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache[K, V]) lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry[K, V]).value, true
}
