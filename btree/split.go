package btree

import "github.com/cokumko/simpleKV-fido/pagefile"

// splitLeaf splits an overflowing leaf h in two, moving its upper half
// to a freshly allocated page and repairing the leaf chain across and
// around the split boundary.
func (ctx *putContext) splitLeaf(h *pagefile.Node) (*pagefile.Node, error) {
	m := h.M
	lower := m / 2
	upper := m - lower

	newPageNo, err := ctx.tree.pages.AllocatePage()
	if err != nil {
		return nil, err
	}
	sibling := &pagefile.Node{PageNo: newPageNo, M: upper}
	for i := 0; i < upper; i++ {
		sibling.Entries[i] = h.Entries[lower+i]
	}
	h.M = lower

	ctx.recomputeSelfOffsets(h)
	ctx.recomputeSelfOffsets(sibling)

	// Entries moved to sibling keep their mutual ordering, but every
	// pointer between two moved entries must be recomputed since both
	// ends changed page. Pointers reaching outside the moved window
	// (sibling's first .Prev, sibling's last .Next) are fixed up below.
	for i := 0; i < upper; i++ {
		if i > 0 {
			sibling.Entries[i].Prev = sibling.Entries[i-1].SelfOffset
		}
		if i < upper-1 {
			sibling.Entries[i].Next = sibling.Entries[i+1].SelfOffset
		}
	}

	if lower > 0 && upper > 0 {
		last := h.Entries[lower-1]
		first := sibling.Entries[0]
		last.Next = first.SelfOffset
		first.Prev = last.SelfOffset
	} else if upper > 0 {
		sibling.Entries[0].Prev = pagefile.NilOffset
	}

	if upper > 0 {
		last := sibling.Entries[upper-1]
		if last.Next != pagefile.NilOffset {
			neighbor, err := ctx.tree.pages.ReadEntryAt(last.Next)
			if err != nil {
				return nil, err
			}
			neighbor.Prev = last.SelfOffset
			ctx.affectedEntries[neighbor.SelfOffset] = neighbor
		}
	}

	return sibling, nil
}

// splitInternal splits an overflowing internal node h in two, moving
// its upper half of entries and children to a freshly allocated page.
// Internal entries carry no leaf-chain pointers, so this is a plain
// redistribution; the caller is responsible for promoting a separator
// for the new sibling into h's parent.
func (ctx *putContext) splitInternal(h *pagefile.Node) (*pagefile.Node, error) {
	m := h.M
	lower := m / 2
	upper := m - lower

	newPageNo, err := ctx.tree.pages.AllocatePage()
	if err != nil {
		return nil, err
	}
	sibling := &pagefile.Node{PageNo: newPageNo, M: upper}
	for i := 0; i < upper; i++ {
		sibling.Entries[i] = h.Entries[lower+i]
		sibling.ChildPageNo[i] = h.ChildPageNo[lower+i]
	}
	h.M = lower

	ctx.recomputeSelfOffsets(h)
	ctx.recomputeSelfOffsets(sibling)
	return sibling, nil
}
