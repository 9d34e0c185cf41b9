// Package store is the Store façade: it composes a Buffer in front of
// a BTree, and a SnapshotManager providing transaction semantics, into
// the single handle the rest of a program opens and drives.
package store

import (
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/cokumko/simpleKV-fido/btree"
	"github.com/cokumko/simpleKV-fido/buffer"
	"github.com/cokumko/simpleKV-fido/errs"
	"github.com/cokumko/simpleKV-fido/pagefile"
	"github.com/cokumko/simpleKV-fido/snapshot"
	"github.com/cokumko/simpleKV-fido/valueheap"
)

// Store is the embedded key-value store's external handle.
type Store struct {
	cfg  Config
	lock *fileLock

	pages *pagefile.PageFile
	heap  *valueheap.Heap
	tree  *btree.BTree
	buf   *buffer.Buffer
	snap  *snapshot.Manager
}

// StoreStats bundles the store's size, height, buffer, and value heap
// counters into one snapshot, for callers that want them together
// rather than calling each accessor separately.
type StoreStats struct {
	Size             int
	Height           int
	BufferSize       int
	NumBufferEntries int
	ValueHeapBytes   uint64
}

// Open opens (creating if absent) the store rooted at path. An empty
// path defaults to DefaultPath.
// Any transaction left in flight by a prior crash is rolled back (or
// its stray snapshot cleaned up) before Open returns.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := newConfig(path, opts...)

	var lock *fileLock
	if !cfg.DisableFileLock {
		l, err := acquireFileLock(cfg.Path)
		if err != nil {
			return nil, err
		}
		lock = l
	}

	heapPath := cfg.Path + "-entries"
	snap := snapshot.New(cfg.Path, heapPath)
	if err := snap.Recover(); err != nil {
		if lock != nil {
			lock.Close()
		}
		return nil, fmt.Errorf("store: recover: %w", err)
	}

	pages, err := pagefile.Open(cfg.Path)
	if err != nil {
		if lock != nil {
			lock.Close()
		}
		return nil, fmt.Errorf("store: open page file: %w", err)
	}
	heap, err := valueheap.Open(heapPath)
	if err != nil {
		pages.Close()
		if lock != nil {
			lock.Close()
		}
		return nil, fmt.Errorf("store: open value heap: %w", err)
	}

	s := &Store{
		cfg:   cfg,
		lock:  lock,
		pages: pages,
		heap:  heap,
		tree:  btree.New(pages, heap),
		buf:   buffer.New(cfg.BufferCapacity),
		snap:  snap,
	}
	return s, nil
}

// Write buffers (key, value) as a dirty entry, proactively flushing
// first if the buffer's dirty count has reached capacity.
func (s *Store) Write(key, value []byte) error {
	if len(key) == 0 || len(value) == 0 {
		return errs.ErrNullArgument
	}
	if s.buf.NumDirty() >= s.cfg.BufferCapacity {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return s.buf.Put(key, value, true)
}

// Read returns the value for key, consulting the buffer before the
// tree. A tree hit is cached back into the buffer as a clean entry.
func (s *Store) Read(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, errs.ErrNullArgument
	}
	if val, ok := s.buf.Get(key); ok {
		return val, true, nil
	}
	val, ok, err := s.tree.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if err := s.buf.Put(key, val, false); err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// ReadRange flushes the buffer, then returns a lazy iterator over
// every key k with k1 <= k <= k2 directly from the tree's leaf chain.
// The iterator does not reflect writes made after ReadRange returns.
func (s *Store) ReadRange(k1, k2 []byte) (*btree.RangeIter, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	return s.tree.GetRange(k1, k2)
}

// Flush drains every dirty buffer entry into the tree and clears the
// dirty set. Clean (non-dirty) buffer entries are left resident.
func (s *Store) Flush() error {
	dirty := s.buf.DrainDirty()
	for _, pair := range dirty {
		if err := s.tree.Put(pair.Key, pair.Value); err != nil {
			return fmt.Errorf("store: flush: %w", err)
		}
	}
	s.buf.ClearDirty()
	if len(dirty) > 0 {
		log.Printf("store: flushed %d entries (%s value heap)", len(dirty), humanize.Bytes(s.heap.End()))
	}
	return nil
}

// BeginTx starts a transaction by snapshotting the current page file
// and value heap, so Commit or a crash-time rollback has a baseline to
// compare against. Calling BeginTx again before a matching Commit
// aborts the transaction already in flight: the live files are rolled
// back to the snapshot taken by the first BeginTx, every buffered
// write since is discarded, and the rolled-back state is reloaded into
// the open page file and value heap handles.
func (s *Store) BeginTx() error {
	rolledBack, err := s.snap.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if rolledBack {
		if err := s.pages.Reload(); err != nil {
			return fmt.Errorf("store: begin tx: reload pages: %w", err)
		}
		if err := s.heap.Reload(); err != nil {
			return fmt.Errorf("store: begin tx: reload entries: %w", err)
		}
		s.buf = buffer.New(s.cfg.BufferCapacity)
		log.Printf("store: transaction started (prior in-flight transaction rolled back)")
		return nil
	}
	log.Printf("store: transaction started")
	return nil
}

// Commit flushes all dirty state to disk, then deletes the transaction
// snapshot, making the writes since BeginTx durable. Calling Commit
// without a prior BeginTx fails with errs.ErrPrecondition.
func (s *Store) Commit() error {
	if !s.snap.InFlight() {
		return errs.ErrPrecondition
	}
	if err := s.Flush(); err != nil {
		return err
	}
	if err := s.pages.Sync(); err != nil {
		return fmt.Errorf("store: commit: sync pages: %w", err)
	}
	if err := s.heap.Sync(); err != nil {
		return fmt.Errorf("store: commit: sync entries: %w", err)
	}
	if err := s.snap.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	log.Printf("store: transaction committed")
	return nil
}

// Size returns the tree's live entry count.
func (s *Store) Size() int {
	return s.tree.Size()
}

// Height returns the tree's current height.
func (s *Store) Height() int {
	return s.tree.Height()
}

// BufferSize returns the number of resident buffer entries.
func (s *Store) BufferSize() int {
	return s.buf.Len()
}

// NumBufferEntries is an alias for BufferSize.
func (s *Store) NumBufferEntries() int {
	return s.buf.Len()
}

// Stats bundles the store's size/height/buffer/heap counters and logs
// a human-readable summary.
func (s *Store) Stats() StoreStats {
	stats := StoreStats{
		Size:             s.tree.Size(),
		Height:           s.tree.Height(),
		BufferSize:       s.buf.Len(),
		NumBufferEntries: s.buf.Len(),
		ValueHeapBytes:   s.heap.End(),
	}
	log.Printf("store: stats size=%d height=%d buffer=%d heap=%s",
		stats.Size, stats.Height, stats.BufferSize, humanize.Bytes(stats.ValueHeapBytes))
	return stats
}

// Close releases the advisory file lock and closes the underlying page
// file and value heap handles.
func (s *Store) Close() error {
	var firstErr error
	if err := s.pages.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.heap.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.lock != nil {
		if err := s.lock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
