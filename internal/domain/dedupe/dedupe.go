// Package dedupe tracks recently seen match submissions for idempotency.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper maps client idempotency keys to the match id they produced.
type Deduper interface {
	// Remember atomically records key -> matchID unless key is already known.
	// When it is, the earlier match id is returned with seen == true.
	Remember(ctx context.Context, key, matchID string) (existing string, seen bool)

	// Forget drops key so the submission can be retried, e.g. after the
	// queue refused it.
	Forget(ctx context.Context, key string)

	Size() int
}

type entry struct {
	key     string
	matchID string
}

// inMemoryDeduper keeps the most recent maxSize keys and evicts the oldest.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50_000,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Remember(_ context.Context, key, matchID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		return el.Value.(entry).matchID, true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushFront(entry{key: key, matchID: matchID})
	return matchID, false
}

func (d *inMemoryDeduper) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(entry).key)
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
