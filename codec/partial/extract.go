package partial

import (
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/subset"
)

// ExtractArraySubset extracts `want` (an array-relative Subset assumed
// contained within `whole`'s coverage) from a fully decoded `data` whose
// coverage is `whole`. It is the shared element-copy routine behind every
// "decode everything, then slice out what was asked for" partial decoder
// (spec.md §4.3's whole-chunk compressors, the caches, and the default
// array→array partial decoder).
func ExtractArraySubset(data codec.ArrayBytes, whole, want subset.Subset, rep codec.ChunkRepresentation) (codec.ArrayBytes, error) {
	rel := whole.Relative(want)

	if data.Kind == codec.VariableLengthBytes {
		return extractVariable(data, whole.Shape, rel)
	}

	elemSize, ok := rep.DataType.FixedSize()
	if !ok {
		return codec.ArrayBytes{}, fmt.Errorf("%w: fixed-length extraction requested for variable-length type %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	out := make([]byte, want.NumElements()*uint64(elemSize))
	var cursor uint64
	subset.ContiguousRuns(whole.Shape, rel.Start, rel.Shape, func(r subset.Run) {
		n := r.Count * uint64(elemSize)
		srcOff := r.Index * uint64(elemSize)
		copy(out[cursor:cursor+n], data.Fixed[srcOff:srcOff+n])
		cursor += n
	})
	return codec.NewFixed(out), nil
}

// extractVariable walks every element of `rel` (a sub-region expressed in
// wholeShape's coordinate system) in row-major order and rebuilds a
// variable-length ArrayBytes from the corresponding elements of data.
func extractVariable(data codec.ArrayBytes, wholeShape []uint64, rel subset.Subset) (codec.ArrayBytes, error) {
	elems := rel.NumElements()
	offsets := make([]uint64, elems+1)
	payload := make([]byte, 0, elems)

	relStrides := subset.Strides(rel.Shape)
	wholeStrides := subset.Strides(wholeShape)

	var total uint64
	for e := uint64(0); e < elems; e++ {
		rem := e
		abs := uint64(0)
		for d := 0; d < len(rel.Shape); d++ {
			var coord uint64
			if relStrides[d] != 0 {
				coord = rem / relStrides[d]
				rem %= relStrides[d]
			}
			abs += (rel.Start[d] + coord) * wholeStrides[d]
		}
		elemBytes, err := data.Element(abs)
		if err != nil {
			return codec.ArrayBytes{}, err
		}
		offsets[e] = total
		payload = append(payload, elemBytes...)
		total += uint64(len(elemBytes))
	}
	offsets[elems] = total
	return codec.NewVariable(payload, offsets), nil
}
