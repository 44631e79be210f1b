package bytestobytes

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
)

// Shuffle reorders bytes so that the Nth byte of every element is grouped
// together (the HDF5/blosc byte-shuffle filter), which often improves a
// downstream compressor's ratio on typed numeric data. This codec is a
// SUPPLEMENTED FEATURE pulled from original_source's filter chain (not
// named in the distilled spec, but present in the original implementation
// and a natural bytes→bytes codec to carry — spec.md §4.3's "Non-goals"
// don't exclude it).
type Shuffle struct {
	ElementSize int
}

func NewShuffle(elementSize int) (*Shuffle, error) {
	if elementSize <= 0 {
		return nil, fmt.Errorf("codec: shuffle element size must be positive, got %d", elementSize)
	}
	return &Shuffle{ElementSize: elementSize}, nil
}

func (s *Shuffle) Name() string { return "shuffle" }

func (s *Shuffle) EncodedRepresentation(decoded codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	return decoded, nil
}

func shuffleBytes(data []byte, elemSize int) []byte {
	if elemSize <= 1 || len(data)%elemSize != 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for b := 0; b < elemSize; b++ {
		for i := 0; i < n; i++ {
			out[b*n+i] = data[i*elemSize+b]
		}
	}
	return out
}

func unshuffleBytes(data []byte, elemSize int) []byte {
	if elemSize <= 1 || len(data)%elemSize != 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for b := 0; b < elemSize; b++ {
		for i := 0; i < n; i++ {
			out[i*elemSize+b] = data[b*n+i]
		}
	}
	return out
}

func (s *Shuffle) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	return shuffleBytes(decoded, s.ElementSize), nil
}

func (s *Shuffle) Decode(_ context.Context, encoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	return unshuffleBytes(encoded, s.ElementSize), nil
}

func (s *Shuffle) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

// PartialDecoderDecodesAll is true: undoing the shuffle needs every byte at
// a given offset-mod-elementSize across the whole buffer, so there is no
// way to unshuffle a sub-range in isolation.
func (s *Shuffle) PartialDecoderDecodesAll() bool       { return true }
func (s *Shuffle) PartialDecoderShouldCacheInput() bool { return false }

func (s *Shuffle) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.BytesRepresentation, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return newWholeStreamDecoder(inner, decoded, opts, s.Decode), nil
}
