package buffer

import (
	"errors"
	"testing"

	"github.com/cokumko/simpleKV-fido/errs"
)

func TestPutGet(t *testing.T) {
	b := New(4)
	if err := b.Put([]byte("a"), []byte("1"), true); err != nil {
		t.Fatalf("put: %v", err)
	}
	val, ok := b.Get([]byte("a"))
	if !ok || string(val) != "1" {
		t.Fatalf("get: got %q, %v", val, ok)
	}
}

func TestDirtyTrackedUntilCleared(t *testing.T) {
	b := New(4)
	if err := b.Put([]byte("a"), []byte("1"), true); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := b.NumDirty(); got != 1 {
		t.Fatalf("num dirty: got %d, want 1", got)
	}
	pairs := b.DrainDirty()
	if len(pairs) != 1 || string(pairs[0].Key) != "a" {
		t.Fatalf("drain dirty: got %+v", pairs)
	}
	b.ClearDirty()
	if got := b.NumDirty(); got != 0 {
		t.Fatalf("num dirty after clear: got %d, want 0", got)
	}
	// clearing dirty doesn't evict the entry
	if _, ok := b.Get([]byte("a")); !ok {
		t.Fatalf("expected entry to remain resident after ClearDirty")
	}
}

func TestEvictsOnlyCleanEntries(t *testing.T) {
	b := New(2)
	if err := b.Put([]byte("a"), []byte("1"), true); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := b.Put([]byte("b"), []byte("2"), false); err != nil {
		t.Fatalf("put b: %v", err)
	}
	// at capacity; b is clean so it should be evicted to make room for c
	if err := b.Put([]byte("c"), []byte("3"), true); err != nil {
		t.Fatalf("put c: %v", err)
	}
	if b.Contains([]byte("b")) {
		t.Fatalf("expected clean entry b to be evicted")
	}
	if !b.Contains([]byte("a")) || !b.Contains([]byte("c")) {
		t.Fatalf("expected dirty entries a and c to remain resident")
	}
}

func TestBufferFullWhenAllDirty(t *testing.T) {
	b := New(2)
	if err := b.Put([]byte("a"), []byte("1"), true); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := b.Put([]byte("b"), []byte("2"), true); err != nil {
		t.Fatalf("put b: %v", err)
	}
	err := b.Put([]byte("c"), []byte("3"), true)
	if !errors.Is(err, errs.ErrBufferFull) {
		t.Fatalf("put c: got %v, want ErrBufferFull", err)
	}
}

func TestPutExistingKeyMovesToTailAndDoesNotGrow(t *testing.T) {
	b := New(2)
	if err := b.Put([]byte("a"), []byte("1"), false); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := b.Put([]byte("b"), []byte("2"), false); err != nil {
		t.Fatalf("put b: %v", err)
	}
	// re-putting a moves it to the tail, so b becomes the oldest
	if err := b.Put([]byte("a"), []byte("1-updated"), false); err != nil {
		t.Fatalf("put a again: %v", err)
	}
	if got := b.Len(); got != 2 {
		t.Fatalf("len: got %d, want 2", got)
	}
	if err := b.Put([]byte("c"), []byte("3"), false); err != nil {
		t.Fatalf("put c: %v", err)
	}
	if b.Contains([]byte("b")) {
		t.Fatalf("expected b to be evicted as the oldest entry")
	}
	if !b.Contains([]byte("a")) {
		t.Fatalf("expected a to remain resident (re-touched more recently)")
	}
}
