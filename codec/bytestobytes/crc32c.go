package bytestobytes

import (
	"context"
	"encoding/binary"
	"hash/crc32"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/store"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Crc32c appends a 4-byte little-endian CRC-32C checksum of the decoded
// stream (spec.md §4.3). No third-party CRC32C implementation appears
// anywhere in the corpus, so this is one of the few stdlib-only codecs in
// the package (see DESIGN.md); hash/crc32's Castagnoli table is the
// standard library's own hardware-accelerated CRC32C.
type Crc32c struct{}

func NewCrc32c() *Crc32c { return &Crc32c{} }

func (c *Crc32c) Name() string { return "crc32c" }

func (c *Crc32c) EncodedRepresentation(decoded codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	switch decoded.Kind {
	case codec.FixedSizeKind:
		return codec.Fixed(decoded.Size + 4), nil
	case codec.BoundedSizeKind:
		return codec.Bounded(decoded.Size + 4), nil
	default:
		return codec.Unbounded(), nil
	}
}

func (c *Crc32c) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	sum := crc32.Checksum(decoded, castagnoliTable)
	out := make([]byte, len(decoded)+4)
	copy(out, decoded)
	binary.LittleEndian.PutUint32(out[len(decoded):], sum)
	return out, nil
}

func (c *Crc32c) Decode(_ context.Context, encoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	if len(encoded) < 4 {
		return nil, codec.ErrChecksumMismatch
	}
	body := encoded[:len(encoded)-4]
	want := binary.LittleEndian.Uint32(encoded[len(encoded)-4:])
	got := crc32.Checksum(body, castagnoliTable)
	if got != want {
		return nil, codec.ErrChecksumMismatch
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (c *Crc32c) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

// PartialDecoderDecodesAll is false: the checksum is a fixed-size suffix
// that doesn't shift any earlier byte's position, so sub-range requests can
// be forwarded unchanged once the stream's un-suffixed size is known.
func (c *Crc32c) PartialDecoderDecodesAll() bool       { return false }
func (c *Crc32c) PartialDecoderShouldCacheInput() bool { return false }

func (c *Crc32c) PartialDecoder(inner codec.BytesPartialDecoder, _ codec.BytesRepresentation, _ codec.Options) (codec.BytesPartialDecoder, error) {
	return &crc32cPartialDecoder{inner: inner}, nil
}

// crc32cPartialDecoder strips the trailing checksum from Size and forwards
// range requests unmodified. It does not verify the checksum: bytes read
// through it are returned unchecked, and only a full Decode detects a
// mismatch.
type crc32cPartialDecoder struct {
	inner codec.BytesPartialDecoder
}

func (d *crc32cPartialDecoder) Size(ctx context.Context) (uint64, error) {
	size, err := d.inner.Size(ctx)
	if err != nil {
		return 0, err
	}
	if size < 4 {
		return 0, codec.ErrChecksumMismatch
	}
	return size - 4, nil
}

func (d *crc32cPartialDecoder) PartialDecode(ctx context.Context, ranges []store.Range) ([][]byte, error) {
	return d.inner.PartialDecode(ctx, ranges)
}
