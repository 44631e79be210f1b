package codec

import (
	"errors"
	"fmt"

	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/store"
)

// Sentinel error kinds from spec.md §7. Callers use errors.Is against these;
// codecs and the chain wrap them with fmt.Errorf("...: %w", ...) for
// context, following the teacher's error-wrapping idiom throughout
// reader.go/metadata.go.
var (
	// ErrUnsupportedDataType re-exports metadata.ErrUnsupportedDataType so
	// callers only need to import codec for errors.Is checks.
	ErrUnsupportedDataType = metadata.ErrUnsupportedDataType

	ErrIncompatibleInputSize      = errors.New("codec: encode input size does not match decoded representation")
	ErrUnexpectedDecodedSize      = errors.New("codec: decoded output size disagrees with expected size")
	ErrInvalidArraySubset         = errors.New("codec: invalid array subset")
	ErrInvalidChunkIndices        = errors.New("codec: chunk index out of grid")
	ErrChecksumMismatch           = errors.New("codec: checksum mismatch")
	ErrVariableLengthOffsetsInvalid = errors.New("codec: variable-length offsets invalid")
	ErrCodecSpecific              = errors.New("codec: codec-specific error")

	// ErrInvalidByteRange re-exports store.ErrInvalidByteRange.
	ErrInvalidByteRange = store.ErrInvalidByteRange
)

// StorageError wraps any underlying store failure, propagated verbatim
// (spec.md §7 StorageError). Use errors.Unwrap to recover the original.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("codec: storage error during %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError builds a StorageError, or returns nil if err is nil.
func NewStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

// CodecError gives an opaque third-party codec error (gzip, zstd, blosc,
// bz2, ...) the codec's name without inventing new semantics for it; it
// carries no chunk index (spec.md §7 CodecSpecific).
type CodecError struct {
	Codec string
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec: %s: %v", e.Codec, e.Err)
}

func (e *CodecError) Unwrap() error { return errors.Join(ErrCodecSpecific, e.Err) }

// NewCodecError wraps err (from a third-party codec library) with the
// codec's name, or returns nil if err is nil.
func NewCodecError(codec string, err error) error {
	if err == nil {
		return nil
	}
	return &CodecError{Codec: codec, Err: err}
}
