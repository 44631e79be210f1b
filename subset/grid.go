package subset

import "fmt"

// RegularGrid is a regular (fixed tile shape) chunk grid over an array.
// It is the only chunk-grid kind spec.md names; its configuration is the
// chunk shape in elements.
type RegularGrid struct {
	ArrayShape []uint64
	ChunkShape []uint64
}

// NewRegularGrid validates and builds a RegularGrid.
func NewRegularGrid(arrayShape, chunkShape []uint64) (RegularGrid, error) {
	if len(arrayShape) != len(chunkShape) {
		return RegularGrid{}, fmt.Errorf("subset: array shape rank %d does not match chunk shape rank %d", len(arrayShape), len(chunkShape))
	}
	for i, c := range chunkShape {
		if c == 0 {
			return RegularGrid{}, fmt.Errorf("subset: chunk shape dimension %d is zero", i)
		}
	}
	return RegularGrid{ArrayShape: arrayShape, ChunkShape: chunkShape}, nil
}

// GridShape returns ceil(arrayShape[i] / chunkShape[i]) in every dimension:
// the number of chunks along each axis.
func (g RegularGrid) GridShape() []uint64 {
	if len(g.ArrayShape) == 0 {
		return []uint64{}
	}
	out := make([]uint64, len(g.ArrayShape))
	for i := range g.ArrayShape {
		out[i] = (g.ArrayShape[i] + g.ChunkShape[i] - 1) / g.ChunkShape[i]
	}
	return out
}

// ErrChunkIndexOutOfGrid is returned when a chunk index names a chunk
// outside the grid computed from the array shape.
var ErrChunkIndexOutOfGrid = fmt.Errorf("subset: chunk index out of grid")

// ChunkShapeAt returns the shape of the chunk at the given index, which may
// be smaller than g.ChunkShape at the array boundary (spec.md §3 "Chunk
// representation").
func (g RegularGrid) ChunkShapeAt(idx ChunkIndex) ([]uint64, error) {
	if len(idx) != len(g.ArrayShape) {
		return nil, ErrDimensionMismatch
	}
	grid := g.GridShape()
	shape := make([]uint64, len(idx))
	for i := range idx {
		if idx[i] >= grid[i] {
			return nil, fmt.Errorf("%w: index %d dim %d >= grid size %d", ErrChunkIndexOutOfGrid, idx[i], i, grid[i])
		}
		start := idx[i] * g.ChunkShape[i]
		end := start + g.ChunkShape[i]
		if end > g.ArrayShape[i] {
			end = g.ArrayShape[i]
		}
		shape[i] = end - start
	}
	return shape, nil
}

// SubsetOf returns the array-relative Subset occupied by the chunk at idx.
func (g RegularGrid) SubsetOf(idx ChunkIndex) (Subset, error) {
	shape, err := g.ChunkShapeAt(idx)
	if err != nil {
		return Subset{}, err
	}
	start := make([]uint64, len(idx))
	for i := range idx {
		start[i] = idx[i] * g.ChunkShape[i]
	}
	return Subset{Start: start, Shape: shape}, nil
}

// ChunksInSubset decomposes an array subset into the chunks it intersects.
// For each intersecting chunk it calls fn with the chunk index, the
// intersection expressed in array-relative coordinates, and the same
// intersection expressed in chunk-relative coordinates. Iteration order is
// row-major over the chunk grid. fn's error aborts iteration and is
// returned verbatim.
func (g RegularGrid) ChunksInSubset(s Subset, fn func(idx ChunkIndex, arrayRel, chunkRel Subset) error) error {
	n := len(g.ArrayShape)
	if len(s.Start) != n {
		return ErrDimensionMismatch
	}
	if s.Empty() {
		return nil
	}
	if !s.InBounds(g.ArrayShape) {
		return fmt.Errorf("subset: region out of array bounds")
	}
	if n == 0 {
		return fn(ChunkIndex{}, s, s)
	}

	sEnd := s.End()
	minChunk := make([]uint64, n)
	maxChunk := make([]uint64, n)
	for i := 0; i < n; i++ {
		minChunk[i] = s.Start[i] / g.ChunkShape[i]
		maxChunk[i] = (sEnd[i] - 1) / g.ChunkShape[i]
	}

	idx := make(ChunkIndex, n)
	copy(idx, minChunk)
	for {
		chunkSubset, err := g.SubsetOf(idx)
		if err != nil {
			return err
		}
		overlap, ok, err := s.Intersect(chunkSubset)
		if err != nil {
			return err
		}
		if ok {
			chunkRel := chunkSubset.Relative(overlap)
			if err := fn(idx.Clone(), overlap, chunkRel); err != nil {
				return err
			}
		}

		// Odometer increment over [minChunk, maxChunk].
		d := n - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] <= maxChunk[d] {
				break
			}
			idx[d] = minChunk[d]
		}
		if d < 0 {
			break
		}
	}
	return nil
}
