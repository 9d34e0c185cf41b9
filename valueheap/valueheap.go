// Package valueheap implements the append-only value log backing a
// store's B-tree: leaf entries hold a file offset into this heap rather
// than the value bytes themselves, so updating a key never rewrites a
// node larger than its fixed page.
package valueheap

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// HeaderSize is the fixed 8-byte header: the end-of-values offset.
const HeaderSize = 8

// Heap is the on-disk value log: an 8-byte eov header followed by
// length-prefixed value records starting at offset HeaderSize.
type Heap struct {
	mu  sync.Mutex
	f   *os.File
	eov uint64
}

// Open opens (creating if absent) the value heap at path.
func Open(path string) (*Heap, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("valueheap: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("valueheap: stat %s: %w", path, err)
	}

	h := &Heap{f: f}
	if info.Size() == 0 {
		h.eov = HeaderSize
		if err := h.writeHeaderLocked(); err != nil {
			f.Close()
			return nil, err
		}
		return h, nil
	}

	if err := h.reloadLocked(); err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

func (h *Heap) writeHeaderLocked() error {
	var buf [HeaderSize]byte
	binary.BigEndian.PutUint64(buf[:], h.eov)
	if _, err := h.f.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("valueheap: write header: %w", err)
	}
	return nil
}

// Reload re-reads the eov header from disk, discarding any in-memory
// value. Callers must use this after something other than this
// handle's own Append has changed the underlying file's bytes in
// place, such as a transaction rollback restoring a prior snapshot.
func (h *Heap) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reloadLocked()
}

func (h *Heap) reloadLocked() error {
	var buf [HeaderSize]byte
	if _, err := h.f.ReadAt(buf[:], 0); err != nil {
		return fmt.Errorf("valueheap: read header: %w", err)
	}
	h.eov = binary.BigEndian.Uint64(buf[:])
	return nil
}

// Append writes value at the current end-of-values offset, advances eov,
// and returns the offset of the record's length prefix: the value's
// durable identity, later stored as an external entry's value_offset.
func (h *Heap) Append(value []byte) (uint64, error) {
	if len(value) == 0 {
		return 0, fmt.Errorf("valueheap: empty value")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	pos := h.eov
	rec := make([]byte, 4+len(value))
	binary.BigEndian.PutUint32(rec[:4], uint32(len(value)))
	copy(rec[4:], value)

	if _, err := h.f.WriteAt(rec, int64(pos)); err != nil {
		return 0, fmt.Errorf("valueheap: append at %d: %w", pos, err)
	}

	h.eov = pos + uint64(len(rec))
	if err := h.writeHeaderLocked(); err != nil {
		return 0, err
	}
	return pos, nil
}

// Read returns the value record starting at offset.
func (h *Heap) Read(offset uint64) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var lenBuf [4]byte
	if _, err := h.f.ReadAt(lenBuf[:], int64(offset)); err != nil {
		return nil, fmt.Errorf("valueheap: read length at %d: %w", offset, err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])

	value := make([]byte, length)
	if _, err := h.f.ReadAt(value, int64(offset)+4); err != nil {
		return nil, fmt.Errorf("valueheap: read value at %d: %w", offset, err)
	}
	return value, nil
}

// End returns the current end-of-values offset.
func (h *Heap) End() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eov
}

// Sync flushes pending writes to stable storage.
func (h *Heap) Sync() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.f.Sync(); err != nil {
		return fmt.Errorf("valueheap: sync: %w", err)
	}
	return nil
}

// Close closes the underlying file handle.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.f.Close(); err != nil {
		return fmt.Errorf("valueheap: close: %w", err)
	}
	return nil
}
