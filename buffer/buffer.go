// Package buffer implements the bounded write-through cache that sits
// in front of the B-tree: recent key-value pairs, a dirty set of
// writes not yet flushed to the tree, and FIFO-ordered eviction that
// never touches a dirty entry.
package buffer

import (
	"container/list"
	"sync"

	"github.com/cokumko/simpleKV-fido/errs"
)

// Pair is a resident key-value entry.
type Pair struct {
	Key   []byte
	Value []byte
}

// Buffer is a bounded, write-through, dirty-tracking cache. Capacity is
// measured in number of resident entries rather than bytes, since
// entries of wildly different sizes are still just slots to evict or
// keep.
type Buffer struct {
	mu       sync.RWMutex
	capacity int

	entries map[string]*list.Element // canonical key -> queue element
	order   *list.List               // FIFO of *Pair, oldest at Front
	dirty   map[string]bool
}

// New creates a Buffer with the given entry capacity. A non-positive
// capacity is treated as 1 (an always-at-capacity buffer still permits
// forward progress as long as every write is promptly flushed).
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		dirty:    make(map[string]bool),
	}
}

// Get returns the cached value for key, if resident.
func (b *Buffer) Get(key []byte) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	elem, ok := b.entries[string(key)]
	if !ok {
		return nil, false
	}
	return elem.Value.(*Pair).Value, true
}

// Contains reports whether key is resident, regardless of dirtiness.
func (b *Buffer) Contains(key []byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[string(key)]
	return ok
}

// Put inserts or updates key with value. If key is already resident it
// moves to the tail of the eviction order (most recently touched). If
// the buffer is at capacity for a new key, a clean entry is evicted
// first; if every resident entry is dirty, Put fails with
// errs.ErrBufferFull. Marking dirty=true adds key to the dirty set
// (unless it's already there); dirty=false never clears an existing
// dirty mark — only Flush does that.
func (b *Buffer) Put(key, value []byte, dirty bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := string(key)
	pair := &Pair{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)}

	if elem, ok := b.entries[k]; ok {
		b.order.Remove(elem)
		b.entries[k] = b.order.PushBack(pair)
	} else {
		if len(b.entries) >= b.capacity {
			if err := b.evictOneLocked(); err != nil {
				return err
			}
		}
		b.entries[k] = b.order.PushBack(pair)
	}

	if dirty && !b.dirty[k] {
		b.dirty[k] = true
	}
	return nil
}

// evictOneLocked removes the oldest entry that is not dirty. Callers
// must hold b.mu.
func (b *Buffer) evictOneLocked() error {
	for elem := b.order.Front(); elem != nil; elem = elem.Next() {
		pair := elem.Value.(*Pair)
		k := string(pair.Key)
		if b.dirty[k] {
			continue
		}
		b.order.Remove(elem)
		delete(b.entries, k)
		return nil
	}
	return errs.ErrBufferFull
}

// Len returns the number of resident entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// NumDirty returns the number of dirty (unflushed) entries.
func (b *Buffer) NumDirty() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.dirty)
}

// Capacity returns the configured entry capacity.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// DrainDirty returns a snapshot of the currently dirty pairs, in no
// particular order. It does not clear the dirty set — call ClearDirty
// once the caller has durably flushed them to the tree.
func (b *Buffer) DrainDirty() []Pair {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Pair, 0, len(b.dirty))
	for elem := b.order.Front(); elem != nil; elem = elem.Next() {
		pair := elem.Value.(*Pair)
		if b.dirty[string(pair.Key)] {
			out = append(out, *pair)
		}
	}
	return out
}

// ClearDirty empties the dirty set. It does not evict any entries —
// clean entries remain cached for future reads.
func (b *Buffer) ClearDirty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = make(map[string]bool)
}
