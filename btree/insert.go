package btree

import (
	"github.com/cokumko/simpleKV-fido/errs"
	"github.com/cokumko/simpleKV-fido/keycodec"
	"github.com/cokumko/simpleKV-fido/pagefile"
)

// putContext accumulates the write set of a single Put: every node
// rewritten wholesale, plus every entry patched in place in a node that
// is otherwise untouched (a neighbor across a leaf-chain splice or a
// split boundary). Both sets are flushed to the PageFile once insert
// returns; the order between them does not matter, since an entry
// present in both is written twice with identical bytes.
type putContext struct {
	tree            *BTree
	affectedNodes   map[uint32]*pagefile.Node
	affectedEntries map[uint64]*pagefile.Entry
}

// Put inserts or overwrites the value for key. Overwriting an existing
// key replaces its value_offset in place and does not grow entry_count;
// a genuinely new key grows entry_count by one.
func (t *BTree) Put(key, value []byte) error {
	if len(key) == 0 || len(value) == 0 {
		return errs.ErrNullArgument
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	valOff, err := t.heap.Append(value)
	if err != nil {
		return err
	}

	hdr := t.pages.Header()
	root, err := t.pages.ReadNode(hdr.RootPageNo)
	if err != nil {
		return err
	}
	oldRootMin := append([]byte(nil), minKey(root)...)

	ctx := &putContext{
		tree:            t,
		affectedNodes:   make(map[uint32]*pagefile.Node),
		affectedEntries: make(map[uint64]*pagefile.Entry),
	}

	sibling, inserted, err := ctx.insert(root, key, valOff, int(hdr.Height))
	if err != nil {
		return err
	}
	if inserted {
		t.pages.IncEntryCount(1)
	}

	if sibling != nil {
		newRootNo, err := t.pages.AllocatePage()
		if err != nil {
			return err
		}
		newRoot := &pagefile.Node{PageNo: newRootNo, M: 2}
		newRoot.ChildPageNo[0] = root.PageNo
		newRoot.ChildPageNo[1] = sibling.PageNo
		newRoot.Entries[0] = &pagefile.Entry{Key: oldRootMin}
		newRoot.Entries[1] = &pagefile.Entry{Key: append([]byte(nil), minKey(sibling)...)}
		ctx.recomputeSelfOffsets(newRoot)
		ctx.affectedNodes[newRootNo] = newRoot

		t.pages.SetRoot(newRootNo)
		t.pages.SetHeight(hdr.Height + 1)
	}

	for _, n := range ctx.affectedNodes {
		if err := t.pages.WriteNode(n); err != nil {
			return err
		}
	}
	for _, e := range ctx.affectedEntries {
		if err := t.pages.WriteEntryAt(e.SelfOffset, e); err != nil {
			return err
		}
	}
	return t.pages.WriteHeader()
}

// recomputeSelfOffsets recomputes every entry's self_offset after a
// node's entries have shifted — an O(M) recompute is simpler and less
// error-prone than patching offsets incrementally, and M is small (4).
func (ctx *putContext) recomputeSelfOffsets(h *pagefile.Node) {
	for i := 0; i < h.M; i++ {
		h.Entries[i].SelfOffset = pagefile.SlotSelfOffset(h.PageNo, h.Entries[:i])
	}
}

// insert descends to the leaf responsible for key and inserts or
// updates it there, propagating a split back up as needed. It returns
// the newly allocated sibling node if h split, and whether a brand new
// key (as opposed to an overwrite) was inserted.
func (ctx *putContext) insert(h *pagefile.Node, key []byte, valOff uint64, ht int) (*pagefile.Node, bool, error) {
	if ht == 0 {
		return ctx.insertLeaf(h, key, valOff)
	}

	j := 0
	for ; j < h.M; j++ {
		if j+1 == h.M || keycodec.Less(key, h.Entries[j+1].Key) {
			break
		}
	}
	child, err := ctx.tree.pages.ReadNode(h.ChildPageNo[j])
	if err != nil {
		return nil, false, err
	}
	sibling, inserted, err := ctx.insert(child, key, valOff, ht-1)
	if err != nil {
		return nil, inserted, err
	}
	if sibling == nil {
		return nil, inserted, nil
	}

	insertAt := j + 1
	for i := h.M; i > insertAt; i-- {
		h.Entries[i] = h.Entries[i-1]
		h.ChildPageNo[i] = h.ChildPageNo[i-1]
	}
	h.Entries[insertAt] = &pagefile.Entry{Key: append([]byte(nil), minKey(sibling)...)}
	h.ChildPageNo[insertAt] = sibling.PageNo
	h.M++
	ctx.recomputeSelfOffsets(h)
	ctx.affectedNodes[h.PageNo] = h

	if h.FitsInPage() {
		return nil, inserted, nil
	}
	newSibling, err := ctx.splitInternal(h)
	if err != nil {
		return nil, inserted, err
	}
	ctx.affectedNodes[newSibling.PageNo] = newSibling
	return newSibling, inserted, nil
}

func (ctx *putContext) insertLeaf(h *pagefile.Node, key []byte, valOff uint64) (*pagefile.Node, bool, error) {
	j := 0
	exists := false
	for ; j < h.M; j++ {
		if keycodec.Equal(key, h.Entries[j].Key) {
			exists = true
			break
		}
		if keycodec.Less(key, h.Entries[j].Key) {
			break
		}
	}

	if exists {
		h.Entries[j].ValueOffset = valOff
		ctx.affectedNodes[h.PageNo] = h
		return nil, false, nil
	}

	for i := h.M; i > j; i-- {
		h.Entries[i] = h.Entries[i-1]
	}
	h.Entries[j] = &pagefile.Entry{
		Key:         append([]byte(nil), key...),
		IsExternal:  true,
		ValueOffset: valOff,
	}
	h.M++

	ctx.recomputeSelfOffsets(h)
	if err := ctx.spliceLeafChain(h, j); err != nil {
		return nil, true, err
	}
	ctx.affectedNodes[h.PageNo] = h

	if h.FitsInPage() {
		return nil, true, nil
	}
	sibling, err := ctx.splitLeaf(h)
	if err != nil {
		return nil, true, err
	}
	ctx.affectedNodes[sibling.PageNo] = sibling
	return sibling, true, nil
}

// spliceLeafChain links the newly inserted entry at position j into h's
// leaf chain, repairing whichever neighbor entry (in this node or
// another) must now point at it. Self-offsets in h must already be
// final before this runs.
func (ctx *putContext) spliceLeafChain(h *pagefile.Node, j int) error {
	m := h.M
	newE := h.Entries[j]

	switch {
	case m == 1:
		newE.Prev, newE.Next = pagefile.NilOffset, pagefile.NilOffset

	case j == 0:
		next := h.Entries[1]
		newE.Next = next.SelfOffset
		newE.Prev = next.Prev
		next.Prev = newE.SelfOffset
		if newE.Prev != pagefile.NilOffset {
			neighbor, err := ctx.tree.pages.ReadEntryAt(newE.Prev)
			if err != nil {
				return err
			}
			neighbor.Next = newE.SelfOffset
			ctx.affectedEntries[neighbor.SelfOffset] = neighbor
		}

	case j == m-1:
		prev := h.Entries[j-1]
		newE.Next = prev.Next
		newE.Prev = prev.SelfOffset
		prev.Next = newE.SelfOffset
		if newE.Next != pagefile.NilOffset {
			neighbor, err := ctx.tree.pages.ReadEntryAt(newE.Next)
			if err != nil {
				return err
			}
			neighbor.Prev = newE.SelfOffset
			ctx.affectedEntries[neighbor.SelfOffset] = neighbor
		}

	default:
		prev := h.Entries[j-1]
		next := h.Entries[j+1]
		newE.Prev = prev.SelfOffset
		newE.Next = next.SelfOffset
		prev.Next = newE.SelfOffset
		next.Prev = newE.SelfOffset
	}

	// Entries after j moved to new offsets: relink every pointer between
	// entries of h, and repoint the next leaf's first entry at h's last.
	for i := 0; i+1 < m; i++ {
		h.Entries[i].Next = h.Entries[i+1].SelfOffset
		h.Entries[i+1].Prev = h.Entries[i].SelfOffset
	}
	if last := h.Entries[m-1]; j < m-1 && last.Next != pagefile.NilOffset {
		neighbor, err := ctx.tree.pages.ReadEntryAt(last.Next)
		if err != nil {
			return err
		}
		neighbor.Prev = last.SelfOffset
		ctx.affectedEntries[neighbor.SelfOffset] = neighbor
	}
	return nil
}
