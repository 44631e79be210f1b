package subset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/subset"
)

func TestSubsetIntersect(t *testing.T) {
	a := subset.New([]uint64{0, 0}, []uint64{4, 4})
	b := subset.New([]uint64{2, 2}, []uint64{4, 4})

	got, ok, err := a.Intersect(b)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uint64{2, 2}, got.Start)
	assert.Equal(t, []uint64{2, 2}, got.Shape)
}

func TestSubsetIntersectDisjoint(t *testing.T) {
	a := subset.New([]uint64{0, 0}, []uint64{2, 2})
	b := subset.New([]uint64{5, 5}, []uint64{2, 2})

	_, ok, err := a.Intersect(b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegularGridChunksInSubset(t *testing.T) {
	grid, err := subset.NewRegularGrid([]uint64{4, 4}, []uint64{2, 2})
	require.NoError(t, err)

	// rows 1..3, cols 0..2 cross the row boundary but stay in chunk column 0,
	// so they touch chunks [0,0] and [1,0].
	region := subset.New([]uint64{1, 0}, []uint64{2, 2})

	var seen []subset.ChunkIndex
	err = grid.ChunksInSubset(region, func(idx subset.ChunkIndex, arrayRel, chunkRel subset.Subset) error {
		seen = append(seen, idx)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, []subset.ChunkIndex{{0, 0}, {1, 0}}, seen)
}

func TestRegularGridChunkShapeAtBoundary(t *testing.T) {
	// 5 elements, chunk size 2: chunks are [2,2,1].
	grid, err := subset.NewRegularGrid([]uint64{5}, []uint64{2})
	require.NoError(t, err)

	shape, err := grid.ChunkShapeAt(subset.ChunkIndex{2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, shape)

	_, err = grid.ChunkShapeAt(subset.ChunkIndex{3})
	assert.ErrorIs(t, err, subset.ErrChunkIndexOutOfGrid)
}

func TestContiguousRunsFullBuffer(t *testing.T) {
	var runs []subset.Run
	subset.ContiguousRuns([]uint64{4, 4}, []uint64{0, 0}, []uint64{4, 4}, func(r subset.Run) {
		runs = append(runs, r)
	})
	require.Len(t, runs, 1)
	assert.Equal(t, uint64(0), runs[0].Index)
	assert.Equal(t, uint64(16), runs[0].Count)
}

func TestContiguousRunsPartialRows(t *testing.T) {
	// 4x4 buffer, selecting rows 1..3, cols 0..1 (not full width) -> 2 runs of 2.
	var runs []subset.Run
	subset.ContiguousRuns([]uint64{4, 4}, []uint64{1, 0}, []uint64{2, 2}, func(r subset.Run) {
		runs = append(runs, r)
	})
	require.Len(t, runs, 2)
	assert.Equal(t, uint64(4), runs[0].Index)
	assert.Equal(t, uint64(2), runs[0].Count)
	assert.Equal(t, uint64(8), runs[1].Index)
	assert.Equal(t, uint64(2), runs[1].Count)
}
