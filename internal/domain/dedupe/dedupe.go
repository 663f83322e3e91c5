// Package dedupe remembers idempotency keys so retried writes are applied once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the outcome of reserving a key.
type State int

const (
	// Fresh means the key was unseen and is now reserved by the caller.
	Fresh State = iota
	// InFlight means another caller holds the key and has not completed yet.
	InFlight
	// Replay means the key completed earlier; the stored value is returned.
	Replay
)

// Deduper tracks idempotency keys.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Seen reports whether id is remembered without recording it.
	Seen(ctx context.Context, id string) bool

	// Reserve claims key for a write. On Replay, value is what Complete stored.
	Reserve(ctx context.Context, key string) (value int64, state State)

	// Complete stores the result of the write that reserved key.
	Complete(ctx context.Context, key string, value int64)

	// Unrecord forgets a key so a failed write can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// node is one remembered key. Nodes form a doubly linked list ordered by
// insertion; the tail is the oldest entry.
type node struct {
	id         string
	value      int64
	done       bool
	prev, next *node
}

func (n *node) reset() {
	*n = node{}
}

// inMemoryDeduper implements Deduper with a map and an insertion-ordered list.
// Bounded mode (maxSize > 0) evicts the oldest completed key when full; keys
// still in flight are never evicted, so the size may exceed maxSize until
// they complete. Unbounded mode (maxSize <= 0) never evicts.
type inMemoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node // newest
	tail     *node // oldest
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{
		New: func() any {
			return &node{}
		},
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	n := d.insert(id)
	n.done = true
	return false
}

func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, exists := d.seen[id]
	return exists
}

func (d *inMemoryDeduper) Reserve(_ context.Context, key string) (int64, State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, exists := d.seen[key]; exists {
		if !n.done {
			return 0, InFlight
		}
		return n.value, Replay
	}
	d.insert(key)
	return 0, Fresh
}

func (d *inMemoryDeduper) Complete(_ context.Context, key string, value int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, exists := d.seen[key]
	if !exists {
		// unrecorded while in flight
		n = d.insert(key)
	}
	n.value = value
	n.done = true
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, exists := d.seen[id]; exists {
		d.remove(n)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// insert adds id at the head. Must be called with d.mu held.
func (d *inMemoryDeduper) insert(id string) *node {
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.remove(d.oldestDone())
	}
	n := d.nodePool.Get().(*node)
	n.id = id
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
	d.seen[id] = n
	d.size.Add(1)
	return n
}

// oldestDone returns the oldest completed key, or nil when every key is in
// flight. Must be called with d.mu held.
func (d *inMemoryDeduper) oldestDone() *node {
	for n := d.tail; n != nil; n = n.prev {
		if n.done {
			return n
		}
	}
	return nil
}

// remove unlinks n and returns it to the pool. Must be called with d.mu held.
func (d *inMemoryDeduper) remove(n *node) {
	if n == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	delete(d.seen, n.id)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}
