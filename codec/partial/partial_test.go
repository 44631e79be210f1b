package partial_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/partial"
	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

func u64(v uint64) *uint64 { return &v }

func TestExtractRangesCoalescesOverlaps(t *testing.T) {
	var fetched [][2]uint64
	data := []byte("0123456789")
	out, err := partial.ExtractRanges(
		[]store.Range{
			store.FromStart(0, u64(3)),
			store.FromStart(1, u64(4)),
			store.FromStart(8, nil),
		},
		uint64(len(data)),
		func(start, end uint64) ([]byte, error) {
			fetched = append(fetched, [2]uint64{start, end})
			return data[start:end], nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []byte("012"), out[0])
	assert.Equal(t, []byte("1234"), out[1])
	assert.Equal(t, []byte("89"), out[2])
	// The first two overlapping ranges [0,3) and [1,5) should merge into one fetch.
	require.Len(t, fetched, 2)
	assert.Equal(t, [2]uint64{0, 5}, fetched[0])
	assert.Equal(t, [2]uint64{8, 10}, fetched[1])
}

func TestStorageDecoder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", []byte("hello world")))

	d := partial.NewStorageDecoder(s, "k")
	size, err := d.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), size)

	out, err := d.PartialDecode(ctx, []store.Range{store.FromStart(6, u64(5))})
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), out[0])
}

func TestIntervalDecoder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "shard", []byte("AAAABBBBCCCC")))

	inner := partial.NewStorageDecoder(s, "shard")
	iv := partial.NewIntervalDecoder(inner, 4, 4) // the "BBBB" window

	out, err := iv.PartialDecode(ctx, []store.Range{store.FromStart(1, u64(2))})
	require.NoError(t, err)
	assert.Equal(t, []byte("BB"), out[0])
}

func TestBytesCacheFetchesOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", []byte("abcdef")))
	calls := 0
	countingStore := &countingDecoder{inner: partial.NewStorageDecoder(s, "k"), calls: &calls}

	c := partial.NewBytesCache(countingStore)
	for i := 0; i < 3; i++ {
		out, err := c.PartialDecode(ctx, []store.Range{store.FromStart(0, u64(3))})
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), out[0])
	}
	assert.Equal(t, 1, calls)
}

type countingDecoder struct {
	inner codec.BytesPartialDecoder
	calls *int
}

func (c *countingDecoder) Size(ctx context.Context) (uint64, error) { return c.inner.Size(ctx) }
func (c *countingDecoder) PartialDecode(ctx context.Context, ranges []store.Range) ([][]byte, error) {
	*c.calls++
	return c.inner.PartialDecode(ctx, ranges)
}

func TestExtractArraySubsetFixed(t *testing.T) {
	// 4x4 uint16 buffer, values 0..16 row-major.
	whole := subset.FromOrigin([]uint64{4, 4})
	want := subset.New([]uint64{1, 0}, []uint64{2, 2})
	rep := codec.ChunkRepresentation{Shape: []uint64{4, 4}, DataType: metadata.Uint16}

	buf := make([]byte, 32)
	for i := 0; i < 16; i++ {
		buf[2*i] = byte(i)
	}
	data := codec.NewFixed(buf)

	got, err := partial.ExtractArraySubset(data, whole, want, rep)
	require.NoError(t, err)
	require.Len(t, got.Fixed, 8)
	assert.Equal(t, []byte{4, 0, 5, 0, 8, 0, 9, 0}, got.Fixed)
}

func TestExtractArraySubsetVariable(t *testing.T) {
	whole := subset.FromOrigin([]uint64{4})
	want := subset.New([]uint64{1}, []uint64{2})
	rep := codec.ChunkRepresentation{Shape: []uint64{4}, DataType: metadata.String}

	data := codec.NewVariable([]byte("abbccc"), []uint64{0, 1, 3, 3, 6})
	got, err := partial.ExtractArraySubset(data, whole, want, rep)
	require.NoError(t, err)
	assert.Equal(t, []byte("bb"), got.Payload)
	assert.Equal(t, []uint64{0, 2, 2}, got.Offsets)
}
