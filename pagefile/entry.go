package pagefile

import (
	"encoding/binary"
	"fmt"

	"github.com/cokumko/simpleKV-fido/errs"
)

// entryFixedSize is the size, in bytes, of every entry field up to and
// including the key length prefix: self_offset(8) + is_external(1) + key_len(4).
const entryFixedSize = 8 + 1 + 4

// externalFieldsSize is the size of the three trailing pointer fields
// carried only by external (leaf) entries.
const externalFieldsSize = 8 + 8 + 8

// Entry is one element of a node's children array: either an internal
// separator routing to a child page, or an external (leaf) entry
// holding a value offset and its position in the global leaf chain.
type Entry struct {
	SelfOffset  uint64 // absolute byte offset of this entry's size prefix
	IsExternal  bool
	Key         []byte
	ValueOffset uint64 // external only
	Prev        uint64 // external only; NilOffset if none
	Next        uint64 // external only; NilOffset if none
}

// NilOffset marks the absence of a prev/next leaf-chain neighbor.
const NilOffset = ^uint64(0)

// BodySize returns the serialized size of the entry body (everything
// from self_offset onward — the value the on-disk "size" prefix holds).
func (e *Entry) BodySize() int {
	size := entryFixedSize + len(e.Key)
	if e.IsExternal {
		size += externalFieldsSize
	}
	return size
}

// encodeBody serializes self_offset onward into dst, which must be
// exactly BodySize() bytes.
func (e *Entry) encodeBody(dst []byte) {
	binary.BigEndian.PutUint64(dst[0:8], e.SelfOffset)
	if e.IsExternal {
		dst[8] = 1
	} else {
		dst[8] = 0
	}
	binary.BigEndian.PutUint32(dst[9:13], uint32(len(e.Key)))
	n := copy(dst[13:], e.Key)
	off := 13 + n
	if e.IsExternal {
		binary.BigEndian.PutUint64(dst[off:off+8], e.ValueOffset)
		binary.BigEndian.PutUint64(dst[off+8:off+16], e.Prev)
		binary.BigEndian.PutUint64(dst[off+16:off+24], e.Next)
	}
}

// decodeEntryBody parses an entry body (the bytes following the size
// prefix) into an Entry.
func decodeEntryBody(body []byte) (*Entry, error) {
	if len(body) < entryFixedSize {
		return nil, fmt.Errorf("%w: entry body too short (%d bytes)", errs.ErrCorruption, len(body))
	}
	e := &Entry{}
	e.SelfOffset = binary.BigEndian.Uint64(body[0:8])
	e.IsExternal = body[8] != 0
	keyLen := binary.BigEndian.Uint32(body[9:13])
	off := 13
	if off+int(keyLen) > len(body) {
		return nil, fmt.Errorf("%w: key length %d overruns entry body", errs.ErrCorruption, keyLen)
	}
	e.Key = append([]byte(nil), body[off:off+int(keyLen)]...)
	off += int(keyLen)

	if e.IsExternal {
		if off+externalFieldsSize > len(body) {
			return nil, fmt.Errorf("%w: external entry body truncated", errs.ErrCorruption)
		}
		e.ValueOffset = binary.BigEndian.Uint64(body[off : off+8])
		e.Prev = binary.BigEndian.Uint64(body[off+8 : off+16])
		e.Next = binary.BigEndian.Uint64(body[off+16 : off+24])
	} else {
		e.Prev, e.Next = NilOffset, NilOffset
	}
	return e, nil
}
