package store

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an advisory, process-exclusive flock held on a store's
// page file for the lifetime of the Store, via a file descriptor
// separate from the one pagefile.PageFile later opens for reads and
// writes. It turns an accidental second process opening the same store
// path into an immediate error instead of silent corruption from two
// writers sharing one file. flock(2) conflicts are tracked per inode,
// not per file descriptor, so a second open of the same path — in this
// process or another — still sees the lock.
type fileLock struct {
	f *os.File
}

func acquireFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open %s for locking: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("store: %s is already locked by another process: %w", path, err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) Close() error {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
