package partial

import (
	"context"
	"sync"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

// BytesCache memoises a whole-stream fetch so repeated partial-decode calls
// that each need the whole thing (because the wrapped codec's
// PartialDecoderDecodesAll is true) only pay for it once. It owns no store
// reference: it lazily pulls the full stream through Inner on first use and
// is not shared across chunks (spec.md §4.2, §5).
type BytesCache struct {
	Inner codec.BytesPartialDecoder

	once sync.Once
	data []byte
	err  error
}

// NewBytesCache wraps inner with a single-fetch whole-stream cache.
func NewBytesCache(inner codec.BytesPartialDecoder) *BytesCache {
	return &BytesCache{Inner: inner}
}

func (c *BytesCache) load(ctx context.Context) ([]byte, error) {
	c.once.Do(func() {
		size, err := c.Inner.Size(ctx)
		if err != nil {
			c.err = err
			return
		}
		out, err := c.Inner.PartialDecode(ctx, []store.Range{store.FromStart(0, &size)})
		if err != nil {
			c.err = err
			return
		}
		c.data = out[0]
	})
	return c.data, c.err
}

func (c *BytesCache) Size(ctx context.Context) (uint64, error) {
	data, err := c.load(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

func (c *BytesCache) PartialDecode(ctx context.Context, ranges []store.Range) ([][]byte, error) {
	data, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		start, end, err := r.Resolve(uint64(len(data)))
		if err != nil {
			return nil, err
		}
		out[i] = data[start:end]
	}
	return out, nil
}

// ArrayBytesCache memoises a whole-chunk array-kind decode, used above the
// array→bytes codec when an outer array→array codec's partial decoder
// cannot avoid decoding everything. Mirrors BytesCache one layer up the
// chain (spec.md §4.2's array-bytes cache).
type ArrayBytesCache struct {
	Inner codec.ArrayPartialDecoder
	Whole subset.Subset
	Rep   codec.ChunkRepresentation

	once sync.Once
	data codec.ArrayBytes
	err  error
}

// NewArrayBytesCache wraps inner with a single-fetch whole-chunk cache; whole
// is the full chunk subset to request on first use and rep describes its
// data type, needed to extract element-aligned sub-regions on cache hits.
func NewArrayBytesCache(inner codec.ArrayPartialDecoder, whole subset.Subset, rep codec.ChunkRepresentation) *ArrayBytesCache {
	return &ArrayBytesCache{Inner: inner, Whole: whole, Rep: rep}
}

func (c *ArrayBytesCache) load(ctx context.Context, opts codec.Options) (codec.ArrayBytes, error) {
	c.once.Do(func() {
		out, err := c.Inner.PartialDecode(ctx, []subset.Subset{c.Whole}, opts)
		if err != nil {
			c.err = err
			return
		}
		c.data = out[0]
	})
	return c.data, c.err
}

func (c *ArrayBytesCache) PartialDecode(ctx context.Context, subsets []subset.Subset, opts codec.Options) ([]codec.ArrayBytes, error) {
	whole, err := c.load(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]codec.ArrayBytes, len(subsets))
	for i, s := range subsets {
		extracted, err := ExtractArraySubset(whole, c.Whole, s, c.Rep)
		if err != nil {
			return nil, err
		}
		out[i] = extracted
	}
	return out, nil
}
