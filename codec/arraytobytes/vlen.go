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

// VlenLayout selects the on-disk framing the Vlen codec uses.
type VlenLayout int

const (
	// InterleavedLayout writes a little-endian uint32 element count,
	// followed by, per element, a little-endian uint32 byte length and then
	// the element's bytes (the zarr-python vlen-utf8/vlen-bytes layout).
	InterleavedLayout VlenLayout = iota
	// V2OffsetArrayLayout writes every element's bytes concatenated,
	// followed by a trailing little-endian uint64 offset table of
	// elements+1 entries (a Zarr V2-compatible layout, spec.md
	// "SUPPLEMENTED FEATURES").
	V2OffsetArrayLayout
)

// Vlen is the array→bytes codec for variable-length data types (string,
// bytes): it serializes the concatenated-payload-plus-offsets ArrayBytes
// representation to one of two on-disk framings (spec.md §4.3 "vlen
// codec").
type Vlen struct {
	Layout VlenLayout
}

func NewVlen(layout VlenLayout) *Vlen { return &Vlen{Layout: layout} }

func (v *Vlen) Name() string { return "vlen" }

func (v *Vlen) EncodedRepresentation(decoded codec.ChunkRepresentation) (codec.BytesRepresentation, error) {
	if !decoded.DataType.IsVariableLength() {
		return codec.BytesRepresentation{}, fmt.Errorf("%w: vlen codec requires a variable-length data type, got %s", codec.ErrUnsupportedDataType, decoded.DataType)
	}
	// Payload size depends on element content, not just shape: unbounded.
	return codec.Unbounded(), nil
}

func (v *Vlen) Encode(_ context.Context, decoded codec.ArrayBytes, rep codec.ChunkRepresentation, _ codec.Options) ([]byte, error) {
	if decoded.Kind != codec.VariableLengthBytes {
		return nil, fmt.Errorf("%w: vlen codec requires variable-length data", codec.ErrUnsupportedDataType)
	}
	if err := decoded.Validate(rep); err != nil {
		return nil, err
	}
	switch v.Layout {
	case V2OffsetArrayLayout:
		return encodeV2Offsets(decoded), nil
	default:
		return encodeInterleaved(decoded), nil
	}
}

func encodeInterleaved(a codec.ArrayBytes) []byte {
	n := a.NumElements()
	out := make([]byte, 4, 4+len(a.Payload)+int(n)*4)
	binary.LittleEndian.PutUint32(out, uint32(n))
	for i := uint64(0); i < n; i++ {
		start, end := a.Offsets[i], a.Offsets[i+1]
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(end-start))
		out = append(out, lenBuf[:]...)
		out = append(out, a.Payload[start:end]...)
	}
	return out
}

func encodeV2Offsets(a codec.ArrayBytes) []byte {
	out := make([]byte, 0, len(a.Payload)+len(a.Offsets)*8)
	out = append(out, a.Payload...)
	for _, off := range a.Offsets {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], off)
		out = append(out, buf[:]...)
	}
	return out
}

func (v *Vlen) Decode(_ context.Context, encoded []byte, rep codec.ChunkRepresentation, _ codec.Options) (codec.ArrayBytes, error) {
	if !rep.DataType.IsVariableLength() {
		return codec.ArrayBytes{}, fmt.Errorf("%w: vlen codec requires a variable-length data type, got %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	var out codec.ArrayBytes
	var err error
	switch v.Layout {
	case V2OffsetArrayLayout:
		out, err = decodeV2Offsets(encoded, rep.NumElements())
	default:
		out, err = decodeInterleaved(encoded)
	}
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	if err := out.Validate(rep); err != nil {
		return codec.ArrayBytes{}, err
	}
	return out, nil
}

func decodeInterleaved(encoded []byte) (codec.ArrayBytes, error) {
	if len(encoded) < 4 {
		return codec.ArrayBytes{}, fmt.Errorf("%w: vlen interleaved stream too short for element count header", codec.ErrUnexpectedDecodedSize)
	}
	n := binary.LittleEndian.Uint32(encoded)
	offsets := make([]uint64, n+1)
	var payload []byte
	pos := uint32(4)
	for i := uint32(0); i < n; i++ {
		if pos+4 > uint32(len(encoded)) {
			return codec.ArrayBytes{}, fmt.Errorf("%w: vlen interleaved stream truncated at element %d length", codec.ErrUnexpectedDecodedSize, i)
		}
		elemLen := binary.LittleEndian.Uint32(encoded[pos:])
		pos += 4
		if uint64(pos)+uint64(elemLen) > uint64(len(encoded)) {
			return codec.ArrayBytes{}, fmt.Errorf("%w: vlen interleaved stream truncated at element %d payload", codec.ErrUnexpectedDecodedSize, i)
		}
		payload = append(payload, encoded[pos:pos+elemLen]...)
		pos += elemLen
		offsets[i+1] = offsets[i] + uint64(elemLen)
	}
	return codec.NewVariable(payload, offsets), nil
}

func decodeV2Offsets(encoded []byte, numElements uint64) (codec.ArrayBytes, error) {
	offsetsBytes := (numElements + 1) * 8
	if uint64(len(encoded)) < offsetsBytes {
		return codec.ArrayBytes{}, fmt.Errorf("%w: vlen v2-offset stream too short for %d offsets", codec.ErrUnexpectedDecodedSize, numElements+1)
	}
	payloadLen := uint64(len(encoded)) - offsetsBytes
	payload := encoded[:payloadLen]
	offsets := make([]uint64, numElements+1)
	for i := uint64(0); i <= numElements; i++ {
		offsets[i] = binary.LittleEndian.Uint64(encoded[payloadLen+i*8:])
	}
	return codec.NewVariable(payload, offsets), nil
}

func (v *Vlen) RecommendedConcurrency(codec.ChunkRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

// PartialDecoderDecodesAll is true: vlen's framing has no fixed stride, so
// vlenPartialDecoder below always decodes the whole stream before slicing
// (spec.md §4.3). The chain relies on this bit to insert a cache above it.
func (v *Vlen) PartialDecoderDecodesAll() bool { return true }

func (v *Vlen) PartialDecoderShouldCacheInput() bool { return false }

// vlenPartialDecoder fetches and decodes the whole stream on every
// PartialDecode call (it keeps no copy between calls) and serves subset
// requests from the decoded ArrayBytes: vlen's framing has no
// fixed per-element stride to compute byte ranges from ahead of decoding,
// so true partial decode is not possible (spec.md §4.3 notes this is one of
// the few array→bytes codecs without sub-chunk partial decode; it still
// honors the ArrayPartialDecoder contract by decoding once and slicing).
type vlenPartialDecoder struct {
	inner codec.BytesPartialDecoder
	codec *Vlen
	rep   codec.ChunkRepresentation
}

func (v *Vlen) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.ChunkRepresentation, _ codec.Options) (codec.ArrayPartialDecoder, error) {
	return &vlenPartialDecoder{inner: inner, codec: v, rep: decoded}, nil
}

func (d *vlenPartialDecoder) PartialDecode(ctx context.Context, subsets []subset.Subset, _ codec.Options) ([]codec.ArrayBytes, error) {
	size, err := d.inner.Size(ctx)
	if err != nil {
		return nil, err
	}
	length := size
	chunks, err := d.inner.PartialDecode(ctx, []store.Range{store.FromStart(0, &length)})
	if err != nil {
		return nil, err
	}
	whole, err := d.codec.Decode(ctx, chunks[0], d.rep, codec.Options{})
	if err != nil {
		return nil, err
	}
	wholeSubset := d.rep.AsSubset()
	out := make([]codec.ArrayBytes, len(subsets))
	for i, s := range subsets {
		extracted, err := partial.ExtractArraySubset(whole, wholeSubset, s, d.rep)
		if err != nil {
			return nil, err
		}
		out[i] = extracted
	}
	return out, nil
}
