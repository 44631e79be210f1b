// Package chain composes array→array, array→bytes, and bytes→bytes codecs
// into the single ordered pipeline spec.md §4.2 calls the "codec chain",
// implementing the array→bytes contract itself so the array I/O engine
// never has to know how many codecs are in play.
package chain

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/partial"
)

// Chain is an ordered codec pipeline: zero or more array→array codecs,
// exactly one array→bytes codec, then zero or more bytes→bytes codecs
// (spec.md §4.2).
type Chain struct {
	ArrayToArray []codec.ArrayToArrayCodec
	ArrayToBytes codec.ArrayToBytesCodec
	BytesToBytes []codec.BytesToBytesCodec
}

// New validates and builds a Chain.
func New(a2a []codec.ArrayToArrayCodec, a2b codec.ArrayToBytesCodec, b2b []codec.BytesToBytesCodec) (*Chain, error) {
	if a2b == nil {
		return nil, fmt.Errorf("chain: exactly one array-to-bytes codec is required")
	}
	return &Chain{ArrayToArray: a2a, ArrayToBytes: a2b, BytesToBytes: b2b}, nil
}

// stages is the forward-propagated representation at each point in the
// chain, computed once and reused by Encode, Decode, and PartialDecoder.
type stages struct {
	// arrayReps[i] is the ChunkRepresentation fed into ArrayToArray[i];
	// arrayReps[len(ArrayToArray)] is the representation fed into ArrayToBytes.
	arrayReps []codec.ChunkRepresentation
	// bytesReps[i] is the BytesRepresentation fed into BytesToBytes[i];
	// bytesReps[0] is the array-to-bytes codec's own output representation.
	bytesReps []codec.BytesRepresentation
}

func (c *Chain) computeStages(decoded codec.ChunkRepresentation) (stages, error) {
	arrayReps := make([]codec.ChunkRepresentation, len(c.ArrayToArray)+1)
	arrayReps[0] = decoded
	for i, a := range c.ArrayToArray {
		next, err := a.EncodedRepresentation(arrayReps[i])
		if err != nil {
			return stages{}, fmt.Errorf("chain: %s encoded_representation: %w", a.Name(), err)
		}
		arrayReps[i+1] = next
	}

	a2bRep, err := c.ArrayToBytes.EncodedRepresentation(arrayReps[len(arrayReps)-1])
	if err != nil {
		return stages{}, fmt.Errorf("chain: %s encoded_representation: %w", c.ArrayToBytes.Name(), err)
	}

	bytesReps := make([]codec.BytesRepresentation, len(c.BytesToBytes)+1)
	bytesReps[0] = a2bRep
	for i, b := range c.BytesToBytes {
		next, err := b.EncodedRepresentation(bytesReps[i])
		if err != nil {
			return stages{}, fmt.Errorf("chain: %s encoded_representation: %w", b.Name(), err)
		}
		bytesReps[i+1] = next
	}
	return stages{arrayReps: arrayReps, bytesReps: bytesReps}, nil
}

// EncodedRepresentation propagates a chunk representation through every
// codec in the chain and returns the final BytesRepresentation (spec.md
// §4.1 "encoded_representation").
func (c *Chain) EncodedRepresentation(decoded codec.ChunkRepresentation) (codec.BytesRepresentation, error) {
	st, err := c.computeStages(decoded)
	if err != nil {
		return codec.BytesRepresentation{}, err
	}
	return st.bytesReps[len(st.bytesReps)-1], nil
}

// RecommendedConcurrency is the element-wise min/max of every codec's own
// recommendation at its stage's representation (spec.md §4.2).
func (c *Chain) RecommendedConcurrency(decoded codec.ChunkRepresentation) (codec.ConcurrencyLimit, error) {
	st, err := c.computeStages(decoded)
	if err != nil {
		return codec.ConcurrencyLimit{}, err
	}
	limit := codec.ConcurrencyLimit{Min: 1, Max: 1 << 30}
	for i, a := range c.ArrayToArray {
		limit = limit.Combine(a.RecommendedConcurrency(st.arrayReps[i]))
	}
	limit = limit.Combine(c.ArrayToBytes.RecommendedConcurrency(st.arrayReps[len(st.arrayReps)-1]))
	for i, b := range c.BytesToBytes {
		limit = limit.Combine(b.RecommendedConcurrency(st.bytesReps[i]))
	}
	return limit, nil
}

// Encode runs array→array codecs in order, then the array→bytes codec,
// then bytes→bytes codecs in order (spec.md §4.2 "Encode").
func (c *Chain) Encode(ctx context.Context, decoded codec.ArrayBytes, rep codec.ChunkRepresentation, opts codec.Options) ([]byte, error) {
	st, err := c.computeStages(rep)
	if err != nil {
		return nil, err
	}

	cur := decoded
	for i, a := range c.ArrayToArray {
		cur, err = a.Encode(ctx, cur, st.arrayReps[i], opts)
		if err != nil {
			return nil, fmt.Errorf("chain: %s encode: %w", a.Name(), err)
		}
	}

	encoded, err := c.ArrayToBytes.Encode(ctx, cur, st.arrayReps[len(st.arrayReps)-1], opts)
	if err != nil {
		return nil, fmt.Errorf("chain: %s encode: %w", c.ArrayToBytes.Name(), err)
	}

	for i, b := range c.BytesToBytes {
		encoded, err = b.Encode(ctx, encoded, st.bytesReps[i], opts)
		if err != nil {
			return nil, fmt.Errorf("chain: %s encode: %w", b.Name(), err)
		}
	}
	return encoded, nil
}

// Decode runs bytes→bytes codecs in reverse, then the array→bytes decode,
// then array→array codecs in reverse, validating the final result against
// rep (spec.md §4.2 "Decode").
func (c *Chain) Decode(ctx context.Context, encoded []byte, rep codec.ChunkRepresentation, opts codec.Options) (codec.ArrayBytes, error) {
	st, err := c.computeStages(rep)
	if err != nil {
		return codec.ArrayBytes{}, err
	}

	data := encoded
	for i := len(c.BytesToBytes) - 1; i >= 0; i-- {
		data, err = c.BytesToBytes[i].Decode(ctx, data, st.bytesReps[i], opts)
		if err != nil {
			return codec.ArrayBytes{}, fmt.Errorf("chain: %s decode: %w", c.BytesToBytes[i].Name(), err)
		}
	}

	decoded, err := c.ArrayToBytes.Decode(ctx, data, st.arrayReps[len(st.arrayReps)-1], opts)
	if err != nil {
		return codec.ArrayBytes{}, fmt.Errorf("chain: %s decode: %w", c.ArrayToBytes.Name(), err)
	}

	for i := len(c.ArrayToArray) - 1; i >= 0; i-- {
		decoded, err = c.ArrayToArray[i].Decode(ctx, decoded, st.arrayReps[i], opts)
		if err != nil {
			return codec.ArrayBytes{}, fmt.Errorf("chain: %s decode: %w", c.ArrayToArray[i].Name(), err)
		}
	}

	if err := decoded.Validate(rep); err != nil {
		return codec.ArrayBytes{}, err
	}
	return decoded, nil
}

// PartialDecoder builds the partial-decode pipeline described in spec.md
// §4.2: innermost-to-outermost partial decoders with a single cache
// inserted at the position the should-cache/must-cache bits dictate. The
// cache_index is computed with one counter spanning bytes→bytes,
// array→bytes, and array→array in decode order (innermost to outermost),
// mirroring the original implementation's codec_chain.rs: a whole-chunk
// decode forced by any one codec, regardless of kind, is cached exactly
// once, wherever in the chain it happens to sit.
func (c *Chain) PartialDecoder(ctx context.Context, inner codec.BytesPartialDecoder, rep codec.ChunkRepresentation, opts codec.Options) (codec.ArrayPartialDecoder, error) {
	st, err := c.computeStages(rep)
	if err != nil {
		return nil, err
	}

	cacheMust := -1
	cacheShould := -1
	idx := 0
	for i := len(c.BytesToBytes) - 1; i >= 0; i-- {
		b := c.BytesToBytes[i]
		if cacheShould < 0 && b.PartialDecoderShouldCacheInput() {
			cacheShould = idx
		}
		if b.PartialDecoderDecodesAll() {
			cacheMust = idx + 1
		}
		idx++
	}
	if cacheShould < 0 && c.ArrayToBytes.PartialDecoderShouldCacheInput() {
		cacheShould = idx
	}
	if c.ArrayToBytes.PartialDecoderDecodesAll() {
		cacheMust = idx + 1
	}
	idx++
	for i := len(c.ArrayToArray) - 1; i >= 0; i-- {
		a := c.ArrayToArray[i]
		if cacheShould < 0 && a.PartialDecoderShouldCacheInput() {
			cacheShould = idx
		}
		if a.PartialDecoderDecodesAll() {
			cacheMust = idx + 1
		}
		idx++
	}
	cacheIndex := -1
	switch {
	case cacheMust >= 0 && cacheShould >= 0:
		cacheIndex = max(cacheMust, cacheShould)
	case cacheMust >= 0:
		cacheIndex = cacheMust
	case cacheShould >= 0:
		cacheIndex = cacheShould
	}

	// Decode order processes bytes→bytes codecs in reverse (the last one
	// applied at encode time sits closest to storage, so it must be
	// stripped first), matching Decode's reverse loop above.
	codecIndex := 0
	bytesDecoder := inner
	for i := len(c.BytesToBytes) - 1; i >= 0; i-- {
		if codecIndex == cacheIndex {
			bytesDecoder = partial.NewBytesCache(bytesDecoder)
		}
		codecIndex++
		bytesDecoder, err = c.BytesToBytes[i].PartialDecoder(bytesDecoder, st.bytesReps[i], opts)
		if err != nil {
			return nil, fmt.Errorf("chain: %s partial_decoder: %w", c.BytesToBytes[i].Name(), err)
		}
	}
	if codecIndex == cacheIndex {
		bytesDecoder = partial.NewBytesCache(bytesDecoder)
	}
	codecIndex++

	arrayDecoder, err := c.ArrayToBytes.PartialDecoder(bytesDecoder, st.arrayReps[len(st.arrayReps)-1], opts)
	if err != nil {
		return nil, fmt.Errorf("chain: %s partial_decoder: %w", c.ArrayToBytes.Name(), err)
	}

	for i := len(c.ArrayToArray) - 1; i >= 0; i-- {
		curRep := st.arrayReps[i+1]
		if codecIndex == cacheIndex {
			arrayDecoder = partial.NewArrayBytesCache(arrayDecoder, curRep.AsSubset(), curRep)
		}
		codecIndex++
		arrayDecoder, err = c.ArrayToArray[i].PartialDecoder(arrayDecoder, st.arrayReps[i], opts)
		if err != nil {
			return nil, fmt.Errorf("chain: %s partial_decoder: %w", c.ArrayToArray[i].Name(), err)
		}
	}
	if codecIndex == cacheIndex {
		arrayDecoder = partial.NewArrayBytesCache(arrayDecoder, st.arrayReps[0].AsSubset(), st.arrayReps[0])
	}
	return arrayDecoder, nil
}
