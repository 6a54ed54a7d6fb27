// Package memory is an in-process cache partitioned into scopes. Each scope
// has its own LRU bound, so a busy scope never evicts another scope's entries.
package memory

import (
	"container/list"
	"sync"
	"time"
)

// Option configures a Set call.
type Option func(*setOptions)

type setOptions struct {
	ttl time.Duration
}

// WithTTL expires the entry d after it was set. Expired entries are dropped
// lazily on the next read.
func WithTTL(d time.Duration) Option {
	return func(o *setOptions) {
		o.ttl = d
	}
}

type entry[V any] struct {
	scope     string
	key       string
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// LRU is a scoped cache safe for concurrent use. The zero value is not usable;
// call NewLRU.
type LRU[V any] struct {
	mu       sync.Mutex
	perScope int
	// front = most recently used
	scopes   map[string]*list.List
	elements map[string]*list.Element
}

// NewLRU returns a cache keeping at most perScope entries in each scope.
func NewLRU[V any](perScope int) *LRU[V] {
	if perScope < 1 {
		perScope = 1
	}
	return &LRU[V]{
		perScope: perScope,
		scopes:   make(map[string]*list.List),
		elements: make(map[string]*list.Element),
	}
}

func entryKey(scope, key string) string {
	return scope + "\x00" + key
}

// Set stores value under key, evicting the scope's least recently used entry
// when the scope is full.
func (c *LRU[V]) Set(scope, key string, value V, opts ...Option) {
	o := &setOptions{}
	for _, opt := range opts {
		opt(o)
	}
	var expiresAt time.Time
	if o.ttl > 0 {
		expiresAt = time.Now().Add(o.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ek := entryKey(scope, key)
	if elem, ok := c.elements[ek]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.scopes[scope].MoveToFront(elem)
		return
	}

	l, ok := c.scopes[scope]
	if !ok {
		l = list.New()
		c.scopes[scope] = l
	}
	if l.Len() >= c.perScope {
		if back := l.Back(); back != nil {
			evicted := l.Remove(back).(*entry[V])
			delete(c.elements, entryKey(evicted.scope, evicted.key))
		}
	}
	c.elements[ek] = l.PushFront(&entry[V]{scope: scope, key: key, value: value, expiresAt: expiresAt})
}

// Get returns the value under key and marks it most recently used.
func (c *LRU[V]) Get(scope, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.elements[entryKey(scope, key)]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if e.expired(time.Now()) {
		c.remove(elem)
		return zero, false
	}
	c.scopes[scope].MoveToFront(elem)
	return e.value, true
}

// Delete removes key and reports whether it was present.
func (c *LRU[V]) Delete(scope, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.elements[entryKey(scope, key)]
	if !ok {
		return false
	}
	c.remove(elem)
	return true
}

// Forget drops a whole scope and returns how many entries it held.
func (c *LRU[V]) Forget(scope string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.scopes[scope]
	if !ok {
		return 0
	}
	n := l.Len()
	for elem := l.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[V])
		delete(c.elements, entryKey(e.scope, e.key))
	}
	delete(c.scopes, scope)
	return n
}

// Keys lists the live keys of scope, most recently used first.
func (c *LRU[V]) Keys(scope string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.scopes[scope]
	if !ok {
		return nil
	}
	now := time.Now()
	var keys []string
	var stale []*list.Element
	for elem := l.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[V])
		if e.expired(now) {
			stale = append(stale, elem)
			continue
		}
		keys = append(keys, e.key)
	}
	for _, elem := range stale {
		c.remove(elem)
	}
	return keys
}

// Len counts entries across all scopes, expired ones included until read.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, l := range c.scopes {
		total += l.Len()
	}
	return total
}

// remove must be called with mu held.
func (c *LRU[V]) remove(elem *list.Element) {
	e := elem.Value.(*entry[V])
	l := c.scopes[e.scope]
	l.Remove(elem)
	delete(c.elements, entryKey(e.scope, e.key))
	if l.Len() == 0 {
		delete(c.scopes, e.scope)
	}
}
