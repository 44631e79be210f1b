package partial

import (
	"context"
	"fmt"

	"github.com/TuSKan/go-zarr/store"
)

// StorageDecoder adapts a (Store, key) pair into a byte-range-addressable
// source: the storage partial decoder, component B. It is the innermost
// decoder in every partial-decode pipeline built by codec/chain.
type StorageDecoder struct {
	Store store.Store
	Key   string
}

// NewStorageDecoder builds a StorageDecoder for the given store and key.
func NewStorageDecoder(s store.Store, key string) *StorageDecoder {
	return &StorageDecoder{Store: s, Key: key}
}

func (d *StorageDecoder) Size(ctx context.Context) (uint64, error) {
	n, err := d.Store.Size(ctx, d.Key)
	if err != nil {
		return 0, fmt.Errorf("partial: failed to stat %q: %w", d.Key, err)
	}
	return n, nil
}

// PartialDecode coalesces overlapping/adjacent requested ranges (component
// A) before issuing one Store.GetPartialValues fetch per merged span, so
// the store is never asked to re-fetch the same bytes twice for one call.
func (d *StorageDecoder) PartialDecode(ctx context.Context, ranges []store.Range) ([][]byte, error) {
	size, err := d.Size(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractRanges(ranges, size, func(start, end uint64) ([]byte, error) {
		length := end - start
		out, err := d.Store.GetPartialValues(ctx, d.Key, []store.Range{store.FromStart(start, &length)})
		if err != nil {
			return nil, fmt.Errorf("partial: failed to read range [%d,%d) of %q: %w", start, end, d.Key, err)
		}
		return out[0], nil
	})
}
