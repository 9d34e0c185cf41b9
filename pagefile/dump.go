package pagefile

import (
	"fmt"
	"io"
)

// Dump writes a human-readable rendering of every allocated page to w,
// for debugging a corrupt or unexpected tree shape.
func (pf *PageFile) Dump(w io.Writer) error {
	hdr := pf.Header()
	fmt.Fprintf(w, "root=%d pages=%d entries=%d height=%d\n", hdr.RootPageNo, hdr.PageCount, hdr.EntryCount, hdr.Height)

	for pageNo := uint32(0); pageNo < hdr.PageCount; pageNo++ {
		n, err := pf.ReadNode(pageNo)
		if err != nil {
			fmt.Fprintf(w, "page %d: <error: %v>\n", pageNo, err)
			continue
		}
		kind := "internal"
		if n.IsLeaf() {
			kind = "leaf"
		}
		fmt.Fprintf(w, "page %d (%s) m=%d\n", pageNo, kind, n.M)
		for i := 0; i < n.M; i++ {
			e := n.Entries[i]
			if e.IsExternal {
				fmt.Fprintf(w, "  [%d] key=%q value_offset=%d prev=%d next=%d\n", i, e.Key, e.ValueOffset, e.Prev, e.Next)
			} else {
				fmt.Fprintf(w, "  [%d] key=%q child=%d\n", i, e.Key, n.ChildPageNo[i])
			}
		}
	}
	return nil
}
