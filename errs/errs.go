// Package errs defines the sentinel error values surfaced by the store.
//
// Callers should prefer errors.Is against these sentinels; I/O failures
// are wrapped with fmt.Errorf("...: %w", err) rather than normalized
// into a sentinel, so the underlying *PathError/etc remains inspectable
// via errors.Unwrap.
package errs

import "errors"

var (
	// ErrNullArgument is returned when a required key or value is nil or empty.
	ErrNullArgument = errors.New("simplekv: key or value argument is nil or empty")

	// ErrBufferFull is returned when the write buffer is at capacity and
	// every resident entry is dirty, so eviction has nothing to reclaim.
	ErrBufferFull = errors.New("simplekv: buffer is full, no clean entry to evict")

	// ErrCorruption is returned when a decoded node or entry violates an
	// on-disk invariant (bad size, m > M, key length overruns the page).
	ErrCorruption = errors.New("simplekv: on-disk data violates a storage invariant")

	// ErrPrecondition is returned when an operation's precondition isn't
	// met, e.g. Commit without a prior BeginTx.
	ErrPrecondition = errors.New("simplekv: operation precondition not satisfied")
)
