package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cokumko/simpleKV-fido/errs"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "store")
	opts = append(opts, WithoutFileLock())
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestBasicWriteRead(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Write([]byte("hello"), []byte("world")); err != nil {
		t.Fatalf("write: %v", err)
	}
	val, ok, err := s.Read([]byte("hello"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok || string(val) != "world" {
		t.Fatalf("read: got %q, %v", val, ok)
	}
}

func TestReadMissingKey(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := s.Read([]byte("nope"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}

func TestReadRangeAfterFlush(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		val := []byte(fmt.Sprintf("v%02d", i))
		if err := s.Write(key, val); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	it, err := s.ReadRange([]byte("k05"), []byte("k10"))
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	count := 0
	for it.Next() {
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("range iteration: %v", err)
	}
	if count != 6 {
		t.Fatalf("range count: got %d, want 6", count)
	}
}

func TestWriteTriggersEvictionUnderCapacity(t *testing.T) {
	s, _ := newTestStore(t, WithBufferCapacity(4))

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		val := []byte(fmt.Sprintf("v%03d", i))
		if err := s.Write(key, val); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	// every key must be readable regardless of whether it's still
	// buffered or was flushed to the tree by a proactive flush.
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		want := fmt.Sprintf("v%03d", i)
		val, ok, err := s.Read(key)
		if err != nil || !ok || string(val) != want {
			t.Fatalf("read %d: got %q, %v, %v", i, val, ok, err)
		}
	}
}

func TestCommitPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store")

	s, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.BeginTx(); err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	for i := 0; i < 100; i++ {
		c := []byte{byte(i)}
		if err := s.Write(c, c); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if got := s2.Size(); got != 100 {
		t.Fatalf("size after reopen: got %d, want 100", got)
	}
	for i := 0; i < 100; i++ {
		c := []byte{byte(i)}
		val, ok, err := s2.Read(c)
		if err != nil || !ok || string(val) != string(c) {
			t.Fatalf("read %d after reopen: got %q, %v, %v", i, val, ok, err)
		}
	}
}

func TestCrashBeforeCommitRollsBackOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store")

	s, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.BeginTx(); err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	for i := 0; i < 100; i++ {
		c := []byte{byte(i)}
		if err := s.Write(c, c); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	// simulate a crash: no Commit, no Close, just abandon the handle
	// and reopen a fresh Store over the same path.
	s.pages.Sync()
	s.heap.Sync()

	s2, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("reopen after crash: %v", err)
	}
	defer s2.Close()

	if got := s2.Size(); got != 0 {
		t.Fatalf("size after crash rollback: got %d, want 0", got)
	}
	for i := 0; i < 100; i++ {
		c := []byte{byte(i)}
		_, ok, err := s2.Read(c)
		if err != nil {
			t.Fatalf("read %d after crash rollback: %v", i, err)
		}
		if ok {
			t.Fatalf("expected key %d absent after rollback", i)
		}
	}
}

func TestCrashAfterFlushBeforeCommitRollsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store")

	s, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.BeginTx(); err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if got := s.Size(); got != 0 {
		t.Fatalf("size before writes: got %d, want 0", got)
	}
	for i := 0; i < 100; i++ {
		c := []byte{byte(i)}
		if err := s.Write(c, c); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := s.Size(); got != 100 {
		t.Fatalf("size after flush: got %d, want 100", got)
	}
	// crash after flush (data on disk) but before commit (snapshot not cleared)
	s.pages.Sync()
	s.heap.Sync()

	s2, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("reopen after crash: %v", err)
	}
	defer s2.Close()

	if got := s2.Size(); got != 0 {
		t.Fatalf("size after crash rollback: got %d, want 0", got)
	}
	for i := 0; i < 100; i++ {
		c := []byte{byte(i)}
		_, ok, err := s2.Read(c)
		if err != nil {
			t.Fatalf("read %d after crash rollback: %v", i, err)
		}
		if ok {
			t.Fatalf("expected key %d absent after rollback even though it was flushed pre-crash", i)
		}
	}
}

func TestCommitThenCrashMidTransactionKeepsFirstCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store")
	half := 50

	s, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.BeginTx(); err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	for i := 0; i < half; i++ {
		c := []byte{byte(i)}
		if err := s.Write(c, c); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := s.BeginTx(); err != nil {
		t.Fatalf("begin second tx: %v", err)
	}
	if got := s.Size(); got != half {
		t.Fatalf("size at start of second tx: got %d, want %d", got, half)
	}
	for i := 0; i < half; i++ {
		c := []byte{byte(i)}
		v := []byte{byte(i + 1)}
		if err := s.Write(c, v); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if got := s.Size(); got != half {
		t.Fatalf("size mid second tx: got %d, want %d", got, half)
	}
	// crash mid-second-transaction, never committing it
	s.pages.Sync()
	s.heap.Sync()

	s2, err := Open(path, WithoutFileLock())
	if err != nil {
		t.Fatalf("reopen after crash: %v", err)
	}
	defer s2.Close()

	if got := s2.Size(); got != half {
		t.Fatalf("size after rollback of second tx: got %d, want %d", got, half)
	}
	for i := 0; i < half; i++ {
		c := []byte{byte(i)}
		val, ok, err := s2.Read(c)
		if err != nil || !ok || string(val) != string(c) {
			t.Fatalf("read %d after rollback: got %q, %v, %v; want original pre-second-tx value", i, val, ok, err)
		}
	}
}

func TestStatsAndAccessors(t *testing.T) {
	s, path := newTestStore(t)
	if err := s.Write([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	stats := s.Stats()
	if stats.Size != 1 {
		t.Fatalf("stats size: got %d, want 1", stats.Size)
	}
	if s.Size() != stats.Size {
		t.Fatalf("Size() disagrees with Stats().Size")
	}
	if s.BufferSize() != s.NumBufferEntries() {
		t.Fatalf("BufferSize() disagrees with NumBufferEntries()")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected page file on disk at %s: %v", path, err)
	}
	if _, err := os.Stat(path + "-entries"); err != nil {
		t.Fatalf("expected value heap on disk: %v", err)
	}
}

func TestCommitWithoutBeginTxReturnsPrecondition(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Commit(); !errors.Is(err, errs.ErrPrecondition) {
		t.Fatalf("commit without begin: got %v, want errs.ErrPrecondition", err)
	}
}

func TestBeginTxAgainWithoutCrashRollsBackFlushedWrites(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.BeginTx(); err != nil {
		t.Fatalf("first begin tx: %v", err)
	}
	for i := 0; i < 10; i++ {
		c := []byte{byte(i)}
		if err := s.Write(c, c); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := s.Size(); got != 10 {
		t.Fatalf("size after flush: got %d, want 10", got)
	}

	// no crash, no reopen: calling BeginTx again while the first
	// transaction is still in flight must abort it, discarding the
	// flushed-but-uncommitted writes.
	if err := s.BeginTx(); err != nil {
		t.Fatalf("second begin tx: %v", err)
	}
	if got := s.Size(); got != 0 {
		t.Fatalf("size after second BeginTx: got %d, want 0", got)
	}
	for i := 0; i < 10; i++ {
		c := []byte{byte(i)}
		_, ok, err := s.Read(c)
		if err != nil {
			t.Fatalf("read %d after rollback: %v", i, err)
		}
		if ok {
			t.Fatalf("expected key %d absent after second BeginTx rolled back the first transaction", i)
		}
	}
}

func TestBeginTxAgainDiscardsUnflushedBufferedWrites(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.BeginTx(); err != nil {
		t.Fatalf("first begin tx: %v", err)
	}
	if err := s.Write([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// deliberately not flushed: the write lives only in the buffer.

	if err := s.BeginTx(); err != nil {
		t.Fatalf("second begin tx: %v", err)
	}
	_, ok, err := s.Read([]byte("a"))
	if err != nil {
		t.Fatalf("read after rollback: %v", err)
	}
	if ok {
		t.Fatalf("expected buffered write from the aborted transaction to be discarded")
	}
}

func TestOpenEmptyPathDefaultsToSimpleKVStore(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(cwd)

	s, err := Open("", WithoutFileLock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(DefaultPath); err != nil {
		t.Fatalf("expected default-named store file: %v", err)
	}
}
