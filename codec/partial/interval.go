package partial

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/store"
)

// IntervalDecoder remaps byte ranges into a sub-interval [Start, Start+Length)
// of an inner BytesPartialDecoder (component C). The sharding codec uses
// one per inner chunk, so the inner codec chain's partial decoder can be
// handed ranges in inner-chunk-local coordinates while only ever touching
// the shard's own byte window.
type IntervalDecoder struct {
	Inner  codec.BytesPartialDecoder
	Start  uint64
	Length uint64
}

// NewIntervalDecoder builds an IntervalDecoder over [start, start+length) of
// inner.
func NewIntervalDecoder(inner codec.BytesPartialDecoder, start, length uint64) *IntervalDecoder {
	return &IntervalDecoder{Inner: inner, Start: start, Length: length}
}

func (d *IntervalDecoder) Size(ctx context.Context) (uint64, error) {
	return d.Length, nil
}

func (d *IntervalDecoder) PartialDecode(ctx context.Context, ranges []store.Range) ([][]byte, error) {
	remapped := make([]store.Range, len(ranges))
	for i, r := range ranges {
		start, end, err := r.Resolve(d.Length)
		if err != nil {
			return nil, err
		}
		if d.Start+end > d.Start+d.Length {
			return nil, fmt.Errorf("%w: interval range [%d,%d) exceeds interval length %d", store.ErrInvalidByteRange, start, end, d.Length)
		}
		length := end - start
		remapped[i] = store.FromStart(d.Start+start, &length)
	}
	return d.Inner.PartialDecode(ctx, remapped)
}
