// Package codec defines the three-way codec taxonomy (array→array,
// array→bytes, bytes→bytes) from spec.md §4.1, the ArrayBytes/
// BytesRepresentation/ChunkRepresentation data model from §3, and the
// typed error set from §7. Concrete codecs live in the arraytoarray,
// arraytobytes, and bytestobytes subpackages; composition lives in
// codec/chain.
package codec

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

// ChunkRepresentation is the (shape, data type, fill value) triple codecs
// use to interpret bytes (spec.md §3, §4.2). Shape is this chunk's actual
// shape, which may be smaller than the array's nominal chunk shape at a
// boundary chunk.
type ChunkRepresentation struct {
	Shape     []uint64
	DataType  metadata.DataType
	FillValue metadata.FillValue
}

// NumElements is the product of Shape.
func (c ChunkRepresentation) NumElements() uint64 {
	n := uint64(1)
	for _, d := range c.Shape {
		n *= d
	}
	return n
}

// FixedSize returns elements*element_size for fixed-length data types, and
// ok=false for variable-length types.
func (c ChunkRepresentation) FixedSize() (size uint64, ok bool) {
	es, ok := c.DataType.FixedSize()
	if !ok {
		return 0, false
	}
	return c.NumElements() * uint64(es), true
}

// AsSubset returns the chunk's shape as an origin-based Subset, useful for
// requesting "the whole chunk" from a partial decoder.
func (c ChunkRepresentation) AsSubset() subset.Subset {
	return subset.FromOrigin(c.Shape)
}

// SizeKind distinguishes the three BytesRepresentation shapes (spec.md §3).
type SizeKind int

const (
	// FixedSizeKind means the encoded size is known exactly in advance.
	FixedSizeKind SizeKind = iota
	// BoundedSizeKind means the encoded size is unknown but bounded above.
	BoundedSizeKind
	// UnboundedSizeKind means no usable bound is known in advance.
	UnboundedSizeKind
)

// BytesRepresentation is a codec-output size descriptor that propagates
// through the chain and drives sharding's allocation strategy (spec.md §3,
// §4.4).
type BytesRepresentation struct {
	Kind SizeKind
	Size uint64 // valid for FixedSizeKind and BoundedSizeKind
}

// Fixed builds an exact-size BytesRepresentation.
func Fixed(n uint64) BytesRepresentation { return BytesRepresentation{Kind: FixedSizeKind, Size: n} }

// Bounded builds a bounded-size BytesRepresentation.
func Bounded(n uint64) BytesRepresentation {
	return BytesRepresentation{Kind: BoundedSizeKind, Size: n}
}

// Unbounded builds an unbounded BytesRepresentation.
func Unbounded() BytesRepresentation { return BytesRepresentation{Kind: UnboundedSizeKind} }

// Bound returns the best known upper bound and whether one exists (true for
// both Fixed and Bounded).
func (b BytesRepresentation) Bound() (uint64, bool) {
	switch b.Kind {
	case FixedSizeKind, BoundedSizeKind:
		return b.Size, true
	default:
		return 0, false
	}
}

// ArrayBytesKind distinguishes the two decoded-payload shapes (spec.md §3).
type ArrayBytesKind int

const (
	FixedLengthBytes ArrayBytesKind = iota
	VariableLengthBytes
)

// ArrayBytes is a chunk or subset's decoded payload: either a flat fixed
// stride buffer, or concatenated variable-length element payloads plus an
// offset table. Go slices already alias their backing array on reslicing,
// which gives the "zero-copy slice of a decoded shard" property spec.md §9
// asks for without a dedicated owned/borrowed wrapper type (see DESIGN.md).
type ArrayBytes struct {
	Kind    ArrayBytesKind
	Fixed   []byte   // valid when Kind == FixedLengthBytes
	Payload []byte   // valid when Kind == VariableLengthBytes: concatenated elements
	Offsets []uint64 // valid when Kind == VariableLengthBytes: len() == elements+1
}

// NewFixed builds a fixed-length ArrayBytes.
func NewFixed(b []byte) ArrayBytes { return ArrayBytes{Kind: FixedLengthBytes, Fixed: b} }

// NewVariable builds a variable-length ArrayBytes from concatenated payload
// bytes and a monotonic offset table.
func NewVariable(payload []byte, offsets []uint64) ArrayBytes {
	return ArrayBytes{Kind: VariableLengthBytes, Payload: payload, Offsets: offsets}
}

// NumElements returns the element count implied by the representation.
func (a ArrayBytes) NumElements() uint64 {
	if a.Kind == VariableLengthBytes {
		if len(a.Offsets) == 0 {
			return 0
		}
		return uint64(len(a.Offsets) - 1)
	}
	return 0 // caller must divide Fixed by element size; length alone is ambiguous
}

// Element returns the byte payload of element i for a variable-length
// ArrayBytes.
func (a ArrayBytes) Element(i uint64) ([]byte, error) {
	if a.Kind != VariableLengthBytes {
		return nil, fmt.Errorf("codec: Element called on fixed-length ArrayBytes")
	}
	if i+1 >= uint64(len(a.Offsets)) {
		return nil, fmt.Errorf("%w: element index %d out of range (%d elements)", ErrInvalidArraySubset, i, len(a.Offsets)-1)
	}
	return a.Payload[a.Offsets[i]:a.Offsets[i+1]], nil
}

// Validate checks the invariants from spec.md §3: for fixed-length bytes,
// length equals elements*element_size; for variable-length, offsets are
// monotonic non-decreasing, start at 0, end at len(Payload), and there are
// elements+1 of them.
func (a ArrayBytes) Validate(rep ChunkRepresentation) error {
	if a.Kind == FixedLengthBytes {
		size, ok := rep.FixedSize()
		if !ok {
			return fmt.Errorf("%w: fixed-length ArrayBytes used with variable-length data type %s", ErrUnexpectedDecodedSize, rep.DataType)
		}
		if uint64(len(a.Fixed)) != size {
			return fmt.Errorf("%w: expected %d bytes, got %d", ErrUnexpectedDecodedSize, size, len(a.Fixed))
		}
		return nil
	}
	n := rep.NumElements()
	if uint64(len(a.Offsets)) != n+1 {
		return fmt.Errorf("%w: expected %d offsets for %d elements, got %d", ErrVariableLengthOffsetsInvalid, n+1, n, len(a.Offsets))
	}
	if len(a.Offsets) > 0 && a.Offsets[0] != 0 {
		return fmt.Errorf("%w: first offset must be 0, got %d", ErrVariableLengthOffsetsInvalid, a.Offsets[0])
	}
	for i := 1; i < len(a.Offsets); i++ {
		if a.Offsets[i] < a.Offsets[i-1] {
			return fmt.Errorf("%w: offsets must be non-decreasing at index %d", ErrVariableLengthOffsetsInvalid, i)
		}
	}
	if len(a.Offsets) > 0 && a.Offsets[len(a.Offsets)-1] != uint64(len(a.Payload)) {
		return fmt.Errorf("%w: last offset %d must equal payload length %d", ErrVariableLengthOffsetsInvalid, a.Offsets[len(a.Offsets)-1], len(a.Payload))
	}
	return nil
}

// ConcurrencyLimit advises how many goroutines a codec can usefully use for
// one operation (spec.md §4.2, §5).
type ConcurrencyLimit struct {
	Min int
	Max int
}

// Serial is the trivial recommendation: exactly one goroutine.
func Serial() ConcurrencyLimit { return ConcurrencyLimit{Min: 1, Max: 1} }

// Combine reconciles two concurrency recommendations by taking the
// element-wise min of the maxima and max of the minima, per spec.md §4.2's
// "element-wise min/max" rule (an explicitly open question in §9 as to
// whether a better reconciliation exists; this module takes the spec's
// literal rule).
func (c ConcurrencyLimit) Combine(o ConcurrencyLimit) ConcurrencyLimit {
	min := c.Min
	if o.Min > min {
		min = o.Min
	}
	max := c.Max
	if o.Max < max {
		max = o.Max
	}
	if max < min {
		max = min
	}
	return ConcurrencyLimit{Min: min, Max: max}
}

// Options carries the per-call concurrency target (spec.md §4.1 "options"
// parameter); it holds no codec-specific settings.
type Options struct {
	// ConcurrencyTarget is the number of goroutines this call may use; the
	// chain and sharding codec split it between outer and inner work
	// (spec.md §5).
	ConcurrencyTarget int
}

func (o Options) concurrency() int {
	if o.ConcurrencyTarget <= 0 {
		return 1
	}
	return o.ConcurrencyTarget
}

// ConcurrencyTargetOrDefault returns o.ConcurrencyTarget, defaulting to 1.
func (o Options) ConcurrencyTargetOrDefault() int { return o.concurrency() }

// BytesPartialDecoder produces decoded bytes for requested byte ranges
// without decoding a whole stream (spec.md §4.1 partial_decoder, for
// bytes-kind codecs).
type BytesPartialDecoder interface {
	PartialDecode(ctx context.Context, ranges []store.Range) ([][]byte, error)
	// Size returns the total size of the underlying (encoded) byte stream.
	Size(ctx context.Context) (uint64, error)
}

// ArrayPartialDecoder produces decoded ArrayBytes for requested array
// subsets without decoding a whole chunk (spec.md §4.1 partial_decoder, for
// array-kind codecs/chain).
type ArrayPartialDecoder interface {
	PartialDecode(ctx context.Context, subsets []subset.Subset, opts Options) ([]ArrayBytes, error)
}

// ArrayToArrayCodec permutes axes or transforms values while preserving
// data type and dimensionality (spec.md §4.1).
type ArrayToArrayCodec interface {
	Name() string
	EncodedRepresentation(decoded ChunkRepresentation) (ChunkRepresentation, error)
	Encode(ctx context.Context, decoded ArrayBytes, rep ChunkRepresentation, opts Options) (ArrayBytes, error)
	Decode(ctx context.Context, encoded ArrayBytes, rep ChunkRepresentation, opts Options) (ArrayBytes, error)
	PartialDecoder(inner ArrayPartialDecoder, decoded ChunkRepresentation, opts Options) (ArrayPartialDecoder, error)
	// PartialDecoderDecodesAll and PartialDecoderShouldCacheInput are the
	// same cache-placement bits BytesToBytesCodec declares, so the chain's
	// cache_index computation can span all three codec kinds with one
	// shared counter (spec.md §4.2, mirroring the original implementation's
	// codec_chain.rs, which applies these bits uniformly regardless of
	// codec kind).
	PartialDecoderDecodesAll() bool
	PartialDecoderShouldCacheInput() bool
	RecommendedConcurrency(rep ChunkRepresentation) ConcurrencyLimit
}

// ArrayToBytesCodec converts structured array bytes to a flat byte stream.
// Exactly one appears in a chain (spec.md §4.1, §4.2).
type ArrayToBytesCodec interface {
	Name() string
	EncodedRepresentation(decoded ChunkRepresentation) (BytesRepresentation, error)
	Encode(ctx context.Context, decoded ArrayBytes, rep ChunkRepresentation, opts Options) ([]byte, error)
	Decode(ctx context.Context, encoded []byte, rep ChunkRepresentation, opts Options) (ArrayBytes, error)
	PartialDecoder(inner BytesPartialDecoder, decoded ChunkRepresentation, opts Options) (ArrayPartialDecoder, error)
	// See ArrayToArrayCodec for why these two bits are part of this
	// interface too, not just BytesToBytesCodec.
	PartialDecoderDecodesAll() bool
	PartialDecoderShouldCacheInput() bool
	RecommendedConcurrency(rep ChunkRepresentation) ConcurrencyLimit
}

// BytesToBytesCodec compresses or checksums the byte stream (spec.md §4.1).
type BytesToBytesCodec interface {
	Name() string
	EncodedRepresentation(decoded BytesRepresentation) (BytesRepresentation, error)
	Encode(ctx context.Context, decoded []byte, rep BytesRepresentation, opts Options) ([]byte, error)
	Decode(ctx context.Context, encoded []byte, rep BytesRepresentation, opts Options) ([]byte, error)
	PartialDecoder(inner BytesPartialDecoder, decoded BytesRepresentation, opts Options) (BytesPartialDecoder, error)
	// PartialDecoderDecodesAll is true for whole-stream compressors (gzip,
	// zstd, bz2, blosc) that cannot do true sub-range decoding: their
	// partial decoder decodes everything on the first call (spec.md §4.3).
	PartialDecoderDecodesAll() bool
	// PartialDecoderShouldCacheInput advises the chain to insert a cache
	// below this codec so repeated partial reads don't redundantly pay for
	// whatever processing this codec's partial decoder does to its input
	// (spec.md §4.2, §4.3).
	PartialDecoderShouldCacheInput() bool
	RecommendedConcurrency(rep BytesRepresentation) ConcurrencyLimit
}
