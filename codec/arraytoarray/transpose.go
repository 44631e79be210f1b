// Package arraytoarray implements the array→array codecs named in
// spec.md §4.3: transpose (axis permutation) and bit-round (float mantissa
// truncation).
package arraytoarray

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/subset"
)

// Transpose permutes axes by a fixed permutation; encode applies the
// permutation, decode applies its inverse (spec.md §4.3).
type Transpose struct {
	Permutation []int
}

// NewTranspose validates permutation is a permutation of [0, len) and
// builds a Transpose codec.
func NewTranspose(permutation []int) (*Transpose, error) {
	seen := make([]bool, len(permutation))
	for _, p := range permutation {
		if p < 0 || p >= len(permutation) || seen[p] {
			return nil, fmt.Errorf("codec: transpose configuration %v is not a permutation", permutation)
		}
		seen[p] = true
	}
	return &Transpose{Permutation: permutation}, nil
}

func (t *Transpose) Name() string { return "transpose" }

func (t *Transpose) inverse() []int {
	inv := make([]int, len(t.Permutation))
	for i, p := range t.Permutation {
		inv[p] = i
	}
	return inv
}

func permuteShape(shape []uint64, perm []int) []uint64 {
	out := make([]uint64, len(shape))
	for i, p := range perm {
		out[i] = shape[p]
	}
	return out
}

func (t *Transpose) EncodedRepresentation(decoded codec.ChunkRepresentation) (codec.ChunkRepresentation, error) {
	if len(decoded.Shape) != len(t.Permutation) {
		return codec.ChunkRepresentation{}, fmt.Errorf("%w: transpose permutation rank %d does not match chunk rank %d", codec.ErrInvalidArraySubset, len(t.Permutation), len(decoded.Shape))
	}
	return codec.ChunkRepresentation{
		Shape:     permuteShape(decoded.Shape, t.Permutation),
		DataType:  decoded.DataType,
		FillValue: decoded.FillValue,
	}, nil
}

// permuteBuffer rearranges a row-major fixed-stride buffer of shape
// `shape` so that output axis i holds input axis perm[i] (i.e. output
// element at permuted coordinates equals input element at original
// coordinates).
func permuteBuffer(in []byte, shape []uint64, elemSize int, perm []int) []byte {
	n := len(shape)
	if n == 0 {
		out := make([]byte, len(in))
		copy(out, in)
		return out
	}
	inStrides := subset.Strides(shape)
	outShape := permuteShape(shape, perm)
	outStrides := subset.Strides(outShape)

	out := make([]byte, len(in))
	idx := make([]uint64, n)
	total := uint64(1)
	for _, d := range shape {
		total *= d
	}
	for linear := uint64(0); linear < total; linear++ {
		rem := linear
		for d := 0; d < n; d++ {
			idx[d] = rem / inStrides[d]
			rem %= inStrides[d]
		}
		var outOffset uint64
		for outDim, srcDim := range perm {
			outOffset += idx[srcDim] * outStrides[outDim]
		}
		srcOff := linear * uint64(elemSize)
		dstOff := outOffset * uint64(elemSize)
		copy(out[dstOff:dstOff+uint64(elemSize)], in[srcOff:srcOff+uint64(elemSize)])
	}
	return out
}

func (t *Transpose) Encode(_ context.Context, decoded codec.ArrayBytes, rep codec.ChunkRepresentation, _ codec.Options) (codec.ArrayBytes, error) {
	if decoded.Kind != codec.FixedLengthBytes {
		return codec.ArrayBytes{}, fmt.Errorf("%w: transpose does not support variable-length data types", codec.ErrUnsupportedDataType)
	}
	elemSize, ok := rep.DataType.FixedSize()
	if !ok {
		return codec.ArrayBytes{}, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	return codec.NewFixed(permuteBuffer(decoded.Fixed, rep.Shape, elemSize, t.Permutation)), nil
}

func (t *Transpose) Decode(_ context.Context, encoded codec.ArrayBytes, rep codec.ChunkRepresentation, _ codec.Options) (codec.ArrayBytes, error) {
	if encoded.Kind != codec.FixedLengthBytes {
		return codec.ArrayBytes{}, fmt.Errorf("%w: transpose does not support variable-length data types", codec.ErrUnsupportedDataType)
	}
	elemSize, ok := rep.DataType.FixedSize()
	if !ok {
		return codec.ArrayBytes{}, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	// rep is the *decoded* (pre-transpose) representation; the encoded
	// buffer's physical shape is rep.Shape permuted forward.
	encShape := permuteShape(rep.Shape, t.Permutation)
	return codec.NewFixed(permuteBuffer(encoded.Fixed, encShape, elemSize, t.inverse())), nil
}

func (t *Transpose) RecommendedConcurrency(codec.ChunkRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

// PartialDecoderDecodesAll is false: transpose remaps coordinates and
// forwards, it never needs the whole chunk.
func (t *Transpose) PartialDecoderDecodesAll() bool { return false }

func (t *Transpose) PartialDecoderShouldCacheInput() bool { return false }

// transposePartialDecoder remaps requested (decoded-space) subsets into
// encoded-space before forwarding to inner, then permutes the returned
// buffers back to decoded-space (spec.md §4.3 "Partial decode applies the
// permutation to the requested subset before forwarding").
type transposePartialDecoder struct {
	inner codec.ArrayPartialDecoder
	t     *Transpose
	rep   codec.ChunkRepresentation // decoded representation
}

func (t *Transpose) PartialDecoder(inner codec.ArrayPartialDecoder, decoded codec.ChunkRepresentation, _ codec.Options) (codec.ArrayPartialDecoder, error) {
	return &transposePartialDecoder{inner: inner, t: t, rep: decoded}, nil
}

func (d *transposePartialDecoder) PartialDecode(ctx context.Context, subsets []subset.Subset, opts codec.Options) ([]codec.ArrayBytes, error) {
	encSubsets := make([]subset.Subset, len(subsets))
	for i, s := range subsets {
		encSubsets[i] = subset.Subset{
			Start: permuteU64(s.Start, d.t.Permutation),
			Shape: permuteU64(s.Shape, d.t.Permutation),
		}
	}
	encoded, err := d.inner.PartialDecode(ctx, encSubsets, opts)
	if err != nil {
		return nil, err
	}
	elemSize, ok := d.rep.DataType.FixedSize()
	if !ok {
		return nil, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, d.rep.DataType)
	}
	out := make([]codec.ArrayBytes, len(subsets))
	for i, s := range subsets {
		encShape := permuteU64(s.Shape, d.t.Permutation)
		out[i] = codec.NewFixed(permuteBuffer(encoded[i].Fixed, encShape, elemSize, d.t.inverse()))
	}
	return out, nil
}

func permuteU64(v []uint64, perm []int) []uint64 {
	out := make([]uint64, len(v))
	for i, p := range perm {
		out[i] = v[p]
	}
	return out
}
