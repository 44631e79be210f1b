package arraytoarray

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/metadata"
)

// BitRound masks the low mantissa bits of float elements to zero, keeping
// KeepBits of mantissa precision (spec.md §4.3). It rejects non-float data
// types. Rounding is lossy and one-directional: there is no inverse
// transform, so Decode is the identity (the rounding already happened
// during Encode; spec.md §8 relaxes the round-trip property to a
// codec-specific tolerance for exactly this codec).
type BitRound struct {
	KeepBits int
}

func NewBitRound(keepBits int) (*BitRound, error) {
	if keepBits < 0 {
		return nil, fmt.Errorf("codec: bitround keepbits must be >= 0, got %d", keepBits)
	}
	return &BitRound{KeepBits: keepBits}, nil
}

func (b *BitRound) Name() string { return "bitround" }

func (b *BitRound) EncodedRepresentation(decoded codec.ChunkRepresentation) (codec.ChunkRepresentation, error) {
	if !decoded.DataType.IsFloat() {
		return codec.ChunkRepresentation{}, fmt.Errorf("%w: bitround requires a float data type, got %s", codec.ErrUnsupportedDataType, decoded.DataType)
	}
	return decoded, nil
}

func float32MantissaMask(keepBits int) uint32 {
	const mantissaBits = 23
	if keepBits >= mantissaBits {
		return 0xFFFFFFFF
	}
	discard := mantissaBits - keepBits
	return ^uint32(0) << discard
}

func float64MantissaMask(keepBits int) uint64 {
	const mantissaBits = 52
	if keepBits >= mantissaBits {
		return 0xFFFFFFFFFFFFFFFF
	}
	discard := mantissaBits - keepBits
	return ^uint64(0) << discard
}

func (b *BitRound) Encode(_ context.Context, decoded codec.ArrayBytes, rep codec.ChunkRepresentation, _ codec.Options) (codec.ArrayBytes, error) {
	if decoded.Kind != codec.FixedLengthBytes {
		return codec.ArrayBytes{}, fmt.Errorf("%w: bitround requires fixed-length data", codec.ErrUnsupportedDataType)
	}
	out := make([]byte, len(decoded.Fixed))
	copy(out, decoded.Fixed)

	switch rep.DataType {
	case metadata.Float32:
		mask := float32MantissaMask(b.KeepBits)
		for off := 0; off+4 <= len(out); off += 4 {
			bits := binary.LittleEndian.Uint32(out[off:])
			if !math.IsNaN(float64(math.Float32frombits(bits))) && !math.IsInf(float64(math.Float32frombits(bits)), 0) {
				bits &= mask
			}
			binary.LittleEndian.PutUint32(out[off:], bits)
		}
	case metadata.Float64:
		mask := float64MantissaMask(b.KeepBits)
		for off := 0; off+8 <= len(out); off += 8 {
			bits := binary.LittleEndian.Uint64(out[off:])
			if !math.IsNaN(math.Float64frombits(bits)) && !math.IsInf(math.Float64frombits(bits), 0) {
				bits &= mask
			}
			binary.LittleEndian.PutUint64(out[off:], bits)
		}
	default:
		return codec.ArrayBytes{}, fmt.Errorf("%w: bitround requires a float data type, got %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	return codec.NewFixed(out), nil
}

func (b *BitRound) Decode(_ context.Context, encoded codec.ArrayBytes, rep codec.ChunkRepresentation, _ codec.Options) (codec.ArrayBytes, error) {
	if !rep.DataType.IsFloat() {
		return codec.ArrayBytes{}, fmt.Errorf("%w: bitround requires a float data type, got %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	return encoded, nil
}

func (b *BitRound) RecommendedConcurrency(codec.ChunkRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

// PartialDecoderDecodesAll is false: the pass-through partial decoder below
// never touches more than what was requested.
func (b *BitRound) PartialDecoderDecodesAll() bool { return false }

func (b *BitRound) PartialDecoderShouldCacheInput() bool { return false }

// PartialDecoder is a straight pass-through: bit-round has no coordinate
// remapping, so the requested subsets forward unchanged.
func (b *BitRound) PartialDecoder(inner codec.ArrayPartialDecoder, _ codec.ChunkRepresentation, _ codec.Options) (codec.ArrayPartialDecoder, error) {
	return inner, nil
}
