// Package partial implements the partial-decoder building blocks shared by
// every codec in the chain (spec.md components A-D): a byte-range
// extractor that coalesces overlapping ranges, a storage-backed partial
// decoder, a byte-interval remapping partial decoder (used by sharding),
// and the bytes/array-bytes partial-decoder caches that let a
// whole-chunk-only codec (gzip, zstd, ...) amortise its decode cost across
// repeated partial reads.
package partial

import (
	"sort"

	"github.com/TuSKan/go-zarr/store"
)

// span is a resolved [start, end) byte range.
type span struct {
	start, end uint64
}

// ExtractRanges resolves each requested range against size, merges
// overlapping/adjacent resolved spans, calls fetch once per merged span,
// and slices the fetched bytes back out per original request. This is the
// byte-range extractor (component A): it lets a caller ask for many
// possibly-overlapping ranges while only touching the backing stream for
// the minimal covering set.
func ExtractRanges(ranges []store.Range, size uint64, fetch func(start, end uint64) ([]byte, error)) ([][]byte, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	resolved := make([]span, len(ranges))
	order := make([]int, len(ranges))
	for i, r := range ranges {
		start, end, err := r.Resolve(size)
		if err != nil {
			return nil, err
		}
		resolved[i] = span{start: start, end: end}
		order[i] = i
	}

	sort.Slice(order, func(a, b int) bool {
		return resolved[order[a]].start < resolved[order[b]].start
	})

	type merged struct {
		span
		members []int
	}
	var mergedSpans []merged
	for _, idx := range order {
		s := resolved[idx]
		if n := len(mergedSpans); n > 0 && s.start <= mergedSpans[n-1].end {
			if s.end > mergedSpans[n-1].end {
				mergedSpans[n-1].end = s.end
			}
			mergedSpans[n-1].members = append(mergedSpans[n-1].members, idx)
			continue
		}
		mergedSpans = append(mergedSpans, merged{span: s, members: []int{idx}})
	}

	out := make([][]byte, len(ranges))
	for _, m := range mergedSpans {
		data, err := fetch(m.start, m.end)
		if err != nil {
			return nil, err
		}
		for _, idx := range m.members {
			r := resolved[idx]
			out[idx] = data[r.start-m.start : r.end-m.start]
		}
	}
	return out, nil
}
