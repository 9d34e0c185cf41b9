// Package pagefile is the fixed-page-size storage layer under a store's
// B-tree: a 16-byte header (root page, page count, entry count, height)
// followed by contiguous 4096-byte pages, each holding one Node. Reads
// of whole pages are accelerated by a ristretto read-through cache;
// writes always go to disk first and the cache is updated to match, so
// a cache miss or eviction can only cost time, never correctness.
package pagefile

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/cokumko/simpleKV-fido/errs"
)

// Header is the PageFile's fixed 16-byte header.
type Header struct {
	RootPageNo uint32
	PageCount  uint32
	EntryCount uint32
	Height     uint32
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.RootPageNo)
	binary.BigEndian.PutUint32(buf[4:8], h.PageCount)
	binary.BigEndian.PutUint32(buf[8:12], h.EntryCount)
	binary.BigEndian.PutUint32(buf[12:16], h.Height)
	return buf
}

func decodeHeader(buf []byte) Header {
	return Header{
		RootPageNo: binary.BigEndian.Uint32(buf[0:4]),
		PageCount:  binary.BigEndian.Uint32(buf[4:8]),
		EntryCount: binary.BigEndian.Uint32(buf[8:12]),
		Height:     binary.BigEndian.Uint32(buf[12:16]),
	}
}

// PageFile is the on-disk store for B-tree nodes.
type PageFile struct {
	mu    sync.RWMutex
	f     *os.File
	hdr   Header
	cache *ristretto.Cache[uint32, []byte]
}

// Open opens (creating if absent) the page file at path. A freshly
// created file is initialized with an empty root leaf at page 0.
func Open(path string) (*PageFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagefile: open %s: %w", path, err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint32, []byte]{
		NumCounters: 1e4,
		MaxCost:     1 << 24, // ~16MB of cached page bytes
		BufferItems: 64,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagefile: create page cache: %w", err)
	}

	pf := &PageFile{f: f, cache: cache}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagefile: stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		pf.hdr = Header{RootPageNo: 0, PageCount: 1, EntryCount: 0, Height: 0}
		if err := pf.writeHeaderLocked(); err != nil {
			f.Close()
			return nil, err
		}
		emptyRoot := &Node{PageNo: 0, M: 0}
		data, err := encodeNode(emptyRoot)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := pf.writePageLocked(0, data); err != nil {
			f.Close()
			return nil, err
		}
		return pf, nil
	}

	if err := pf.reloadHeaderLocked(); err != nil {
		f.Close()
		return nil, err
	}
	return pf, nil
}

func (pf *PageFile) reloadHeaderLocked() error {
	buf := make([]byte, HeaderSize)
	if _, err := pf.f.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("pagefile: read header: %w", err)
	}
	pf.hdr = decodeHeader(buf)
	return nil
}

// Reload re-reads the header from disk and drops every cached page.
// Callers must use this after something other than this handle's own
// writes has changed the underlying file's bytes in place — a
// transaction rollback restoring a prior snapshot, for instance —
// since otherwise the cache would keep serving pre-rollback pages.
func (pf *PageFile) Reload() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.cache.Clear()
	return pf.reloadHeaderLocked()
}

func (pf *PageFile) writeHeaderLocked() error {
	if _, err := pf.f.WriteAt(pf.hdr.encode(), 0); err != nil {
		return fmt.Errorf("pagefile: write header: %w", err)
	}
	return nil
}

// WriteHeader persists the current in-memory header to disk.
func (pf *PageFile) WriteHeader() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.writeHeaderLocked()
}

// Header returns a copy of the current in-memory header.
func (pf *PageFile) Header() Header {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.hdr
}

// SetRoot updates the in-memory root page number (written by WriteHeader).
func (pf *PageFile) SetRoot(pageNo uint32) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.hdr.RootPageNo = pageNo
}

// SetHeight updates the in-memory tree height.
func (pf *PageFile) SetHeight(h uint32) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.hdr.Height = h
}

// IncEntryCount increments the in-memory live-entry count by delta
// (delta may be negative, though entries are never deleted today).
func (pf *PageFile) IncEntryCount(delta int) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.hdr.EntryCount = uint32(int64(pf.hdr.EntryCount) + int64(delta))
}

// AllocatePage reserves a new page number and zero-fills it on disk.
func (pf *PageFile) AllocatePage() (uint32, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	pageNo := pf.hdr.PageCount
	pf.hdr.PageCount++
	if err := pf.writePageLocked(pageNo, make([]byte, PageSize)); err != nil {
		return 0, err
	}
	return pageNo, nil
}

// ReadNode loads and decodes the node at pageNo, consulting the read
// cache before going to disk.
func (pf *PageFile) ReadNode(pageNo uint32) (*Node, error) {
	data, err := pf.readPage(pageNo)
	if err != nil {
		return nil, err
	}
	return decodeNode(data, pageNo)
}

// WriteNode encodes and writes node to its page, refreshing the cache.
func (pf *PageFile) WriteNode(node *Node) error {
	data, err := encodeNode(node)
	if err != nil {
		return err
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.writePageLocked(node.PageNo, data)
}

func (pf *PageFile) readPage(pageNo uint32) ([]byte, error) {
	if cached, ok := pf.cache.Get(pageNo); ok {
		out := make([]byte, PageSize)
		copy(out, cached)
		return out, nil
	}

	pf.mu.RLock()
	data := make([]byte, PageSize)
	_, err := pf.f.ReadAt(data, int64(PageOffset(pageNo)))
	pf.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("pagefile: read page %d: %w", pageNo, err)
	}

	pf.cache.Set(pageNo, data, PageSize)
	// ristretto applies new items asynchronously; wait so a later Set of
	// fresher bytes for this page is an in-place update, not dropped.
	pf.cache.Wait()
	return data, nil
}

func (pf *PageFile) writePageLocked(pageNo uint32, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("%w: page %d write size %d != %d", errs.ErrCorruption, pageNo, len(data), PageSize)
	}
	if _, err := pf.f.WriteAt(data, int64(PageOffset(pageNo))); err != nil {
		return fmt.Errorf("pagefile: write page %d: %w", pageNo, err)
	}
	cached := make([]byte, PageSize)
	copy(cached, data)
	pf.cache.Set(pageNo, cached, PageSize)
	pf.cache.Wait()
	return nil
}

// ReadEntryAt reads the entry whose size prefix begins at the given
// absolute file offset — used to follow a leaf entry's prev/next
// leaf-chain pointer, which may land in a different page than the
// caller currently holds.
func (pf *PageFile) ReadEntryAt(offset uint64) (*Entry, error) {
	pf.mu.RLock()
	defer pf.mu.RUnlock()

	var sizeBuf [4]byte
	if _, err := pf.f.ReadAt(sizeBuf[:], int64(offset)); err != nil {
		return nil, fmt.Errorf("pagefile: read entry size at %d: %w", offset, err)
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])

	body := make([]byte, size)
	if _, err := pf.f.ReadAt(body, int64(offset)+4); err != nil {
		return nil, fmt.Errorf("pagefile: read entry body at %d: %w", offset, err)
	}

	entry, err := decodeEntryBody(body)
	if err != nil {
		return nil, err
	}
	if entry.SelfOffset != offset {
		return nil, fmt.Errorf("%w: entry at %d reports self_offset %d", errs.ErrCorruption, offset, entry.SelfOffset)
	}
	return entry, nil
}

// WriteEntryAt overwrites an entry in place at its self_offset — the
// affected-entry write path of a put/split, independent of rewriting
// the whole node page.
func (pf *PageFile) WriteEntryAt(offset uint64, e *Entry) error {
	size := e.BodySize()
	rec := make([]byte, 4+size)
	binary.BigEndian.PutUint32(rec[:4], uint32(size))
	e.encodeBody(rec[4:])

	pf.mu.Lock()
	defer pf.mu.Unlock()
	if _, err := pf.f.WriteAt(rec, int64(offset)); err != nil {
		return fmt.Errorf("pagefile: write entry at %d: %w", offset, err)
	}
	// The entry lives inside exactly one node's page (spec: a node's
	// serialized size never exceeds one page), so invalidate that page.
	pageNo := uint32((offset - HeaderSize) / PageSize)
	pf.cache.Del(pageNo)
	return nil
}

// Sync flushes pending writes to stable storage.
func (pf *PageFile) Sync() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if err := pf.f.Sync(); err != nil {
		return fmt.Errorf("pagefile: sync: %w", err)
	}
	return nil
}

// Close releases the read cache and closes the underlying file.
func (pf *PageFile) Close() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.cache.Close()
	if err := pf.f.Close(); err != nil {
		return fmt.Errorf("pagefile: close: %w", err)
	}
	return nil
}
