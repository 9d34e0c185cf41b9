package pagefile

import (
	"encoding/binary"
	"fmt"

	"github.com/cokumko/simpleKV-fido/errs"
)

const (
	// PageSize is the fixed size of every B-tree page.
	PageSize = 4096
	// M is the B-tree branching factor: at most M entries per node.
	M = 4
	// HeaderSize is the fixed PageFile header: root_page_no, page_count,
	// entry_count, height, each a big-endian uint32.
	HeaderSize = 16

	nodeHeaderSize = 4 + 4 // page_no, m
	slotHeaderSize = 4 + 4 // child_page_no, entry size
)

// Node is a page-sized B-tree node: a page number and up to M entries.
// Leaves hold external entries; internal nodes hold internal entries
// whose key equals the minimum key of the subtree they route to.
type Node struct {
	PageNo      uint32
	M           int
	ChildPageNo [M]uint32 // meaningful only for internal nodes
	Entries     [M]*Entry
}

// IsLeaf reports whether every entry in the node is external. An empty
// node (m==0) is treated as a leaf, matching a freshly allocated root.
func (n *Node) IsLeaf() bool {
	if n.M == 0 {
		return true
	}
	return n.Entries[0].IsExternal
}

// SerializedSize returns the byte size the node would occupy on disk.
func (n *Node) SerializedSize() int {
	size := nodeHeaderSize
	for i := 0; i < n.M; i++ {
		size += slotHeaderSize + n.Entries[i].BodySize()
	}
	return size
}

// FitsInPage reports whether the node still fits within one page and
// has not reached the branching factor, the two conditions that must
// both hold for a node to avoid splitting. Checked consistently
// wherever an entry is inserted.
func (n *Node) FitsInPage() bool {
	return n.M < M && n.SerializedSize() <= PageSize
}

// encodeNode serializes n into exactly PageSize bytes.
func encodeNode(n *Node) ([]byte, error) {
	page := make([]byte, PageSize)
	binary.BigEndian.PutUint32(page[0:4], n.PageNo)
	binary.BigEndian.PutUint32(page[4:8], uint32(n.M))

	offset := nodeHeaderSize
	for i := 0; i < n.M; i++ {
		e := n.Entries[i]
		size := e.BodySize()
		if offset+slotHeaderSize+size > PageSize {
			return nil, fmt.Errorf("%w: node page %d overflows page size", errs.ErrCorruption, n.PageNo)
		}
		binary.BigEndian.PutUint32(page[offset:offset+4], n.ChildPageNo[i])
		binary.BigEndian.PutUint32(page[offset+4:offset+8], uint32(size))
		e.encodeBody(page[offset+8 : offset+8+size])
		offset += slotHeaderSize + size
	}
	return page, nil
}

// decodeNode parses a PageSize-byte page into a Node.
func decodeNode(page []byte, pageNo uint32) (*Node, error) {
	if len(page) != PageSize {
		return nil, fmt.Errorf("%w: page size mismatch (got %d)", errs.ErrCorruption, len(page))
	}

	n := &Node{PageNo: binary.BigEndian.Uint32(page[0:4])}
	m := int(binary.BigEndian.Uint32(page[4:8]))
	if m < 0 || m > M {
		return nil, fmt.Errorf("%w: node %d has invalid m=%d", errs.ErrCorruption, pageNo, m)
	}
	n.M = m

	offset := nodeHeaderSize
	for i := 0; i < m; i++ {
		if offset+slotHeaderSize > PageSize {
			return nil, fmt.Errorf("%w: node %d slot %d header overruns page", errs.ErrCorruption, pageNo, i)
		}
		child := binary.BigEndian.Uint32(page[offset : offset+4])
		size := int(binary.BigEndian.Uint32(page[offset+4 : offset+8]))
		if size < 0 || offset+slotHeaderSize+size > PageSize {
			return nil, fmt.Errorf("%w: node %d slot %d body overruns page", errs.ErrCorruption, pageNo, i)
		}
		entry, err := decodeEntryBody(page[offset+8 : offset+8+size])
		if err != nil {
			return nil, err
		}
		n.ChildPageNo[i] = child
		n.Entries[i] = entry
		offset += slotHeaderSize + size
	}
	return n, nil
}

// SlotSelfOffset computes the self_offset a new entry laid out after
// precedingEntries in the node at pageNo would occupy — the position of
// its "size" prefix, past its own child_page_no field.
func SlotSelfOffset(pageNo uint32, precedingEntries []*Entry) uint64 {
	offset := PageOffset(pageNo) + nodeHeaderSize
	for _, e := range precedingEntries {
		offset += slotHeaderSize + uint64(e.BodySize())
	}
	return offset + 4
}

// PageOffset returns the absolute file offset of page pageNo.
func PageOffset(pageNo uint32) uint64 {
	return HeaderSize + uint64(pageNo)*PageSize
}
