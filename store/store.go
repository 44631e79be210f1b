// Package store defines the byte-key/byte-value storage interface the core
// depends on (spec.md §6), plus a couple of concrete backends: an in-memory
// store for tests and a gocloud.dev/blob-backed store generalizing the
// teacher's bucket-based Reader.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get/GetPartialValues when the key does not
// exist. Callers (the array engine) translate this into fill-value
// synthesis, not an error (spec.md §4.5, §7).
var ErrNotFound = errors.New("store: key not found")

// Range is a byte-range expression: FromStart/FromEnd, with an optional
// length (nil means "to end"), per spec.md §6.
type Range struct {
	FromEnd bool
	Offset  uint64
	Length  *uint64 // nil = to end
}

// FromStart builds a range starting at offset, for length bytes (or to the
// end of the value if length is nil).
func FromStart(offset uint64, length *uint64) Range {
	return Range{FromEnd: false, Offset: offset, Length: length}
}

// FromEndRange builds a suffix range: the last `offset` bytes if length is
// nil, otherwise `length` bytes starting `offset` bytes from the end.
func FromEndRange(offset uint64, length *uint64) Range {
	return Range{FromEnd: true, Offset: offset, Length: length}
}

// Resolve turns a Range into concrete [start, end) bounds given the total
// value size.
func (r Range) Resolve(size uint64) (start, end uint64, err error) {
	if r.FromEnd {
		if r.Offset > size {
			return 0, 0, fmt.Errorf("store: suffix range offset %d exceeds size %d", r.Offset, size)
		}
		start = size - r.Offset
		if r.Length != nil {
			end = start + *r.Length
		} else {
			end = size
		}
	} else {
		start = r.Offset
		if r.Length != nil {
			end = start + *r.Length
		} else {
			end = size
		}
	}
	if end > size || start > end {
		return 0, 0, fmt.Errorf("%w: range [%d,%d) exceeds size %d", ErrInvalidByteRange, start, end, size)
	}
	return start, end, nil
}

// ErrInvalidByteRange is returned when a requested byte range exceeds the
// underlying value (spec.md §7 InvalidByteRange).
var ErrInvalidByteRange = errors.New("store: invalid byte range")

// ErrListUnsupported is returned by Group.Children when the underlying
// Store does not implement Lister.
var ErrListUnsupported = errors.New("store: backend does not support listing")

// Lister is an optional Store capability: backends that can enumerate keys
// under a prefix implement it so Group.Children can list a group's
// immediate descendants (spec.md §1 allows group metadata/listing; it only
// excludes full tree traversal). Not part of the core Store interface since
// chunk read/write/erase never needs it.
type Lister interface {
	// ListDir returns the immediate child names (not full keys) directly
	// under prefix, the way a directory listing would, with no recursion
	// into grandchildren.
	ListDir(ctx context.Context, prefix string) ([]string, error)
}

// Store is the byte-key/byte-value backend the core depends on. All
// methods must be safe for concurrent use by multiple goroutines, since the
// array engine shares one Store across parallel per-chunk workers
// (spec.md §5).
type Store interface {
	// Get returns the full value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetPartialValues returns, for each requested range, the corresponding
	// slice of the value at key. Returns ErrNotFound if the key does not
	// exist (as a single error, not per-range).
	GetPartialValues(ctx context.Context, key string, ranges []Range) ([][]byte, error)

	// Set stores value at key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Erase removes key if present. erased is false if the key did not exist.
	Erase(ctx context.Context, key string) (erased bool, err error)

	// Size returns the byte length of the value at key, or ErrNotFound.
	Size(ctx context.Context, key string) (uint64, error)
}
