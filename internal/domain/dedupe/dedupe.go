// Package dedupe tracks idempotency keys so a retried request is applied once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 10_000

// Deduper records seen request keys and the reference each one produced.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen. The empty key is never recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Resolve attaches the reference produced by the request holding key,
	// e.g. the id of the stored match.
	Resolve(ctx context.Context, key string, ref int64)

	// Lookup returns the reference attached to key. ok is false while the
	// key is unknown or still unresolved.
	Lookup(ctx context.Context, key string) (ref int64, ok bool)

	// Unrecord forgets key so the request can be retried after a failure.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	slot     int // ring position, -1 when unbounded
	ref      int64
	resolved bool
}

// inMemoryDeduper keeps keys in a map. In bounded mode (maxSize > 0) a ring
// of insertion order evicts the oldest key once the ring is full.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*entry
	ring    []string // "" marks a free slot
	next    int
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*entry)
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	if key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}

	e := &entry{slot: -1}
	if d.maxSize > 0 {
		if old := d.ring[d.next]; old != "" {
			delete(d.seen, old)
		}
		d.ring[d.next] = key
		e.slot = d.next
		d.next = (d.next + 1) % d.maxSize
	}
	d.seen[key] = e
	return false
}

func (d *inMemoryDeduper) Resolve(_ context.Context, key string, ref int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[key]; ok {
		e.ref, e.resolved = ref, true
	}
}

func (d *inMemoryDeduper) Lookup(_ context.Context, key string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.seen[key]
	if !ok || !e.resolved {
		return 0, false
	}
	return e.ref, true
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.seen[key]
	if !ok {
		return
	}
	delete(d.seen, key)
	if e.slot >= 0 {
		d.ring[e.slot] = ""
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
