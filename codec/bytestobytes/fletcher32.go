package bytestobytes

import (
	"context"
	"encoding/binary"

	"github.com/TuSKan/go-zarr/codec"
)

// Fletcher32 appends a 4-byte Fletcher-32 checksum, the HDF5 filter
// original_source also supports alongside CRC32C (a SUPPLEMENTED FEATURE;
// spec.md's distillation only names crc32c, but the original's checksum
// filter chain included this one too). No third-party Fletcher-32
// implementation appears in the corpus, so — like Crc32c — this is a
// stdlib-only codec (see DESIGN.md); the algorithm itself is a dozen lines
// of modular-sum arithmetic, not something worth a dependency for.
type Fletcher32 struct{}

func NewFletcher32() *Fletcher32 { return &Fletcher32{} }

func (f *Fletcher32) Name() string { return "fletcher32" }

func (f *Fletcher32) EncodedRepresentation(decoded codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	switch decoded.Kind {
	case codec.FixedSizeKind:
		return codec.Fixed(decoded.Size + 4), nil
	case codec.BoundedSizeKind:
		return codec.Bounded(decoded.Size + 4), nil
	default:
		return codec.Unbounded(), nil
	}
}

// fletcher32Sum computes the Fletcher-32 checksum over 16-bit little-endian
// words, padding a trailing odd byte with zero per the reference algorithm.
func fletcher32Sum(data []byte) uint32 {
	var sum1, sum2 uint32
	i := 0
	for i+1 < len(data) {
		word := uint32(data[i]) | uint32(data[i+1])<<8
		sum1 = (sum1 + word) % 0xFFFF
		sum2 = (sum2 + sum1) % 0xFFFF
		i += 2
	}
	if i < len(data) {
		word := uint32(data[i])
		sum1 = (sum1 + word) % 0xFFFF
		sum2 = (sum2 + sum1) % 0xFFFF
	}
	return sum2<<16 | sum1
}

func (f *Fletcher32) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	sum := fletcher32Sum(decoded)
	out := make([]byte, len(decoded)+4)
	copy(out, decoded)
	binary.LittleEndian.PutUint32(out[len(decoded):], sum)
	return out, nil
}

func (f *Fletcher32) Decode(_ context.Context, encoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	if len(encoded) < 4 {
		return nil, codec.ErrChecksumMismatch
	}
	body := encoded[:len(encoded)-4]
	want := binary.LittleEndian.Uint32(encoded[len(encoded)-4:])
	if fletcher32Sum(body) != want {
		return nil, codec.ErrChecksumMismatch
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (f *Fletcher32) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

func (f *Fletcher32) PartialDecoderDecodesAll() bool       { return false }
func (f *Fletcher32) PartialDecoderShouldCacheInput() bool { return false }

func (f *Fletcher32) PartialDecoder(inner codec.BytesPartialDecoder, _ codec.BytesRepresentation, _ codec.Options) (codec.BytesPartialDecoder, error) {
	return &crc32cPartialDecoder{inner: inner}, nil
}
