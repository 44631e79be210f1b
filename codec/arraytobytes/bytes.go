// Package arraytobytes implements the array→bytes codecs named in spec.md
// §4.3-§4.4: the bytes/endian codec, the variable-length (vlen) codec, and
// the sharding codec.
package arraytobytes

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/partial"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

// ByteOrder selects the endianness the Bytes codec writes fixed-length
// elements in.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Bytes is the array→bytes codec for fixed-length data types: it is a
// straight copy (single-byte element types, or LittleEndian Order) or a
// per-element byte-swap (multi-byte element types with BigEndian Order) of
// the decoded buffer (spec.md §4.3 "bytes/endian codec").
// It rejects variable-length data types; use Vlen for those.
type Bytes struct {
	Order ByteOrder
}

func NewBytes(order ByteOrder) *Bytes { return &Bytes{Order: order} }

func (b *Bytes) Name() string { return "bytes" }

func (b *Bytes) EncodedRepresentation(decoded codec.ChunkRepresentation) (codec.BytesRepresentation, error) {
	size, ok := decoded.FixedSize()
	if !ok {
		return codec.BytesRepresentation{}, fmt.Errorf("%w: bytes codec requires a fixed-length data type, got %s", codec.ErrUnsupportedDataType, decoded.DataType)
	}
	return codec.Fixed(size), nil
}

func (b *Bytes) nativeOrder() binary.ByteOrder {
	if b.Order == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// swap reverses every elemSize-byte group in place when Order disagrees
// with the buffer's storage order (the decoded ArrayBytes convention used
// throughout this module is always little-endian, matching Go's common
// case and the teacher's own buffer handling).
func (b *Bytes) swap(buf []byte, elemSize int) []byte {
	if elemSize <= 1 || b.Order == LittleEndian {
		out := make([]byte, len(buf))
		copy(out, buf)
		return out
	}
	out := make([]byte, len(buf))
	for off := 0; off+elemSize <= len(buf); off += elemSize {
		for i := 0; i < elemSize; i++ {
			out[off+i] = buf[off+elemSize-1-i]
		}
	}
	return out
}

func (b *Bytes) Encode(_ context.Context, decoded codec.ArrayBytes, rep codec.ChunkRepresentation, _ codec.Options) ([]byte, error) {
	if decoded.Kind != codec.FixedLengthBytes {
		return nil, fmt.Errorf("%w: bytes codec requires fixed-length data, use vlen for variable-length types", codec.ErrUnsupportedDataType)
	}
	size, ok := rep.FixedSize()
	if !ok {
		return nil, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	if uint64(len(decoded.Fixed)) != size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", codec.ErrIncompatibleInputSize, size, len(decoded.Fixed))
	}
	elemSize, _ := rep.DataType.FixedSize()
	return b.swap(decoded.Fixed, elemSize), nil
}

func (b *Bytes) Decode(_ context.Context, encoded []byte, rep codec.ChunkRepresentation, _ codec.Options) (codec.ArrayBytes, error) {
	size, ok := rep.FixedSize()
	if !ok {
		return codec.ArrayBytes{}, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	if uint64(len(encoded)) != size {
		return codec.ArrayBytes{}, fmt.Errorf("%w: expected %d bytes, got %d", codec.ErrUnexpectedDecodedSize, size, len(encoded))
	}
	elemSize, _ := rep.DataType.FixedSize()
	return codec.NewFixed(b.swap(encoded, elemSize)), nil
}

func (b *Bytes) RecommendedConcurrency(codec.ChunkRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

// PartialDecoderDecodesAll is false: every element has a fixed stride, so
// bytesPartialDecoder below translates a subset directly to a byte range
// without reading anything outside it.
func (b *Bytes) PartialDecoderDecodesAll() bool { return false }

func (b *Bytes) PartialDecoderShouldCacheInput() bool { return false }

// bytesPartialDecoder adapts a bytes-kind partial decoder (storage byte
// ranges) into an array-kind one (array subsets) for the fixed-length
// bytes codec: every subset request translates directly to a byte range
// since the encoding is a flat contiguous buffer (spec.md §4.3).
type bytesPartialDecoder struct {
	inner    codec.BytesPartialDecoder
	rep      codec.ChunkRepresentation
	elemSize int
	order    *Bytes
}

func (b *Bytes) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.ChunkRepresentation, _ codec.Options) (codec.ArrayPartialDecoder, error) {
	elemSize, ok := decoded.DataType.FixedSize()
	if !ok {
		return nil, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, decoded.DataType)
	}
	return &bytesPartialDecoder{inner: inner, rep: decoded, elemSize: elemSize, order: b}, nil
}

func (d *bytesPartialDecoder) PartialDecode(ctx context.Context, subsets []subset.Subset, _ codec.Options) ([]codec.ArrayBytes, error) {
	whole := d.rep.AsSubset()
	out := make([]codec.ArrayBytes, len(subsets))
	for i, s := range subsets {
		ranges, err := subsetByteRanges(whole, s, d.elemSize)
		if err != nil {
			return nil, err
		}
		chunks, err := d.inner.PartialDecode(ctx, ranges)
		if err != nil {
			return nil, err
		}
		buf, err := reassembleContiguous(whole, s, d.elemSize, chunks)
		if err != nil {
			return nil, err
		}
		out[i] = codec.NewFixed(d.order.swap(buf, d.elemSize))
	}
	return out, nil
}

// subsetByteRanges walks the contiguous runs of s within whole and returns
// one byte-range request per run.
func subsetByteRanges(whole, s subset.Subset, elemSize int) ([]store.Range, error) {
	var ranges []store.Range
	subset.ContiguousRuns(whole.Shape, s.Start, s.Shape, func(run subset.Run) {
		start := run.Index * uint64(elemSize)
		length := run.Count * uint64(elemSize)
		ranges = append(ranges, store.FromStart(start, &length))
	})
	return ranges, nil
}

// reassembleContiguous concatenates the byte ranges fetched for s's
// contiguous runs back into a single flat buffer in subset order.
func reassembleContiguous(whole, s subset.Subset, elemSize int, chunks [][]byte) ([]byte, error) {
	total := s.NumElements() * uint64(elemSize)
	out := make([]byte, 0, total)
	i := 0
	subset.ContiguousRuns(whole.Shape, s.Start, s.Shape, func(_ subset.Run) {
		out = append(out, chunks[i]...)
		i++
	})
	return out, nil
}
