// Package btree implements an on-disk B-tree with a fixed branching
// factor M=4, variable-length intra-page entries backed by a
// pagefile.PageFile, a separate valueheap.Heap for value payloads, and a
// doubly-linked chain of external (leaf) entries supporting range scans
// without re-descending the tree for every key.
package btree

import (
	"sync"

	"github.com/cokumko/simpleKV-fido/errs"
	"github.com/cokumko/simpleKV-fido/keycodec"
	"github.com/cokumko/simpleKV-fido/pagefile"
	"github.com/cokumko/simpleKV-fido/valueheap"
)

// BTree is an on-disk B-tree over a PageFile and its companion ValueHeap.
type BTree struct {
	mu    sync.RWMutex
	pages *pagefile.PageFile
	heap  *valueheap.Heap
}

// New wires a BTree to its already-open PageFile and ValueHeap.
func New(pages *pagefile.PageFile, heap *valueheap.Heap) *BTree {
	return &BTree{pages: pages, heap: heap}
}

// Size returns the number of live key-value pairs in the tree.
func (t *BTree) Size() int {
	return int(t.pages.Header().EntryCount)
}

// Height returns the tree's current height.
func (t *BTree) Height() int {
	return int(t.pages.Header().Height)
}

// Get returns the value for key, or ok=false if key is absent.
func (t *BTree) Get(key []byte) (value []byte, ok bool, err error) {
	if len(key) == 0 {
		return nil, false, errs.ErrNullArgument
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	hdr := t.pages.Header()
	root, err := t.pages.ReadNode(hdr.RootPageNo)
	if err != nil {
		return nil, false, err
	}
	entry, err := t.search(root, key, int(hdr.Height), false)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	value, err = t.heap.Read(entry.ValueOffset)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// search walks from node x at height ht toward a leaf. With geq=false it
// looks for an exact key match at the leaf; with geq=true it returns the
// smallest leaf entry with key >= the search key, following the leaf
// chain past the chosen leaf's last entry if necessary.
func (t *BTree) search(x *pagefile.Node, key []byte, ht int, geq bool) (*pagefile.Entry, error) {
	if ht != 0 {
		for j := 0; j < x.M; j++ {
			if j+1 == x.M || keycodec.Less(key, x.Entries[j+1].Key) {
				child, err := t.pages.ReadNode(x.ChildPageNo[j])
				if err != nil {
					return nil, err
				}
				return t.search(child, key, ht-1, geq)
			}
		}
		return nil, nil
	}

	for j := 0; j < x.M; j++ {
		if geq {
			if keycodec.Geq(x.Entries[j].Key, key) {
				return x.Entries[j], nil
			}
		} else if keycodec.Equal(key, x.Entries[j].Key) {
			return x.Entries[j], nil
		}
	}

	if geq && x.M > 0 {
		last := x.Entries[x.M-1]
		if last.Next != pagefile.NilOffset {
			return t.pages.ReadEntryAt(last.Next)
		}
	}
	return nil, nil
}

// minKey returns the key that identifies the minimum of the subtree
// rooted at n — n.Entries[0].Key for both leaves and internal nodes,
// per the invariant that an internal entry's key equals its subtree's
// minimum.
func minKey(n *pagefile.Node) []byte {
	if n.M == 0 {
		return nil
	}
	return n.Entries[0].Key
}
