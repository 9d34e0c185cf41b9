package btree

import (
	"github.com/cokumko/simpleKV-fido/errs"
	"github.com/cokumko/simpleKV-fido/keycodec"
	"github.com/cokumko/simpleKV-fido/pagefile"
)

// RangeIter walks the leaf chain over a half-open-on-neither-side (i.e.
// closed) key range [lo, hi], following next pointers rather than
// re-descending the tree for each key.
type RangeIter struct {
	tree *BTree
	hi   []byte
	cur  *pagefile.Entry
	next *pagefile.Entry
	err  error
}

// GetRange returns an iterator over every key k with k1 <= k <= k2.
func (t *BTree) GetRange(k1, k2 []byte) (*RangeIter, error) {
	if len(k1) == 0 || len(k2) == 0 {
		return nil, errs.ErrNullArgument
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	hdr := t.pages.Header()
	root, err := t.pages.ReadNode(hdr.RootPageNo)
	if err != nil {
		return nil, err
	}
	first, err := t.search(root, k1, int(hdr.Height), true)
	if err != nil {
		return nil, err
	}
	if first == nil || keycodec.More(first.Key, k2) {
		return &RangeIter{}, nil
	}
	return &RangeIter{tree: t, hi: append([]byte(nil), k2...), next: first}, nil
}

// Next advances the iterator and reports whether a new element is
// available via Key/Value. Any I/O error encountered while following
// the chain stops iteration early; check Err afterward.
func (it *RangeIter) Next() bool {
	if it.next == nil {
		return false
	}
	it.cur = it.next
	it.next = nil

	if it.cur.Next == pagefile.NilOffset {
		return true
	}

	it.tree.mu.RLock()
	nextEntry, err := it.tree.pages.ReadEntryAt(it.cur.Next)
	it.tree.mu.RUnlock()
	if err != nil {
		it.err = err
		return true
	}
	if keycodec.More(nextEntry.Key, it.hi) {
		return true
	}
	it.next = nextEntry
	return true
}

// Key returns the current element's key.
func (it *RangeIter) Key() []byte {
	return it.cur.Key
}

// Value reads the current element's value from the value heap.
func (it *RangeIter) Value() ([]byte, error) {
	return it.tree.heap.Read(it.cur.ValueOffset)
}

// Err returns the first error encountered while advancing the iterator.
func (it *RangeIter) Err() error {
	return it.err
}
