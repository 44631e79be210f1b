package bytestobytes_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/bytestobytes"
	"github.com/TuSKan/go-zarr/codec/partial"
	"github.com/TuSKan/go-zarr/store"
)

func sampleData() []byte {
	out := make([]byte, 256)
	for i := range out {
		out[i] = byte(i % 7)
	}
	return out
}

func roundTrip(t *testing.T, c codec.BytesToBytesCodec, decoded []byte) []byte {
	t.Helper()
	ctx := context.Background()
	rep, err := c.EncodedRepresentation(codec.Fixed(uint64(len(decoded))))
	require.NoError(t, err)
	encoded, err := c.Encode(ctx, decoded, codec.Fixed(uint64(len(decoded))), codec.Options{})
	require.NoError(t, err)
	got, err := c.Decode(ctx, encoded, rep, codec.Options{})
	require.NoError(t, err)
	return got
}

func TestGzipRoundTrip(t *testing.T) {
	data := sampleData()
	got := roundTrip(t, bytestobytes.NewGzip(0), data)
	assert.Equal(t, data, got)
}

func TestZstdRoundTrip(t *testing.T) {
	data := sampleData()
	got := roundTrip(t, bytestobytes.NewZstd(0), data)
	assert.Equal(t, data, got)
}

func TestBz2RoundTrip(t *testing.T) {
	data := sampleData()
	got := roundTrip(t, bytestobytes.NewBz2(0), data)
	assert.Equal(t, data, got)
}

func TestLz4RoundTrip(t *testing.T) {
	data := sampleData()
	got := roundTrip(t, bytestobytes.NewLz4(), data)
	assert.Equal(t, data, got)
}

func TestLz4RoundTripIncompressible(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	got := roundTrip(t, bytestobytes.NewLz4(), data)
	assert.Equal(t, data, got)
}

func TestShuffleRoundTrip(t *testing.T) {
	data := sampleData()
	s, err := bytestobytes.NewShuffle(4)
	require.NoError(t, err)
	got := roundTrip(t, s, data)
	assert.Equal(t, data, got)
}

func TestShuffleRejectsZeroElementSize(t *testing.T) {
	_, err := bytestobytes.NewShuffle(0)
	assert.Error(t, err)
}

func TestShuffleActuallyTransposesBytes(t *testing.T) {
	s, err := bytestobytes.NewShuffle(2)
	require.NoError(t, err)
	data := []byte{0x01, 0xAA, 0x02, 0xBB, 0x03, 0xCC}
	encoded, err := s.Encode(context.Background(), data, codec.Fixed(uint64(len(data))), codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0xAA, 0xBB, 0xCC}, encoded)
}

func TestCrc32cRoundTrip(t *testing.T) {
	data := sampleData()
	got := roundTrip(t, bytestobytes.NewCrc32c(), data)
	assert.Equal(t, data, got)
}

func TestCrc32cDetectsCorruption(t *testing.T) {
	c := bytestobytes.NewCrc32c()
	ctx := context.Background()
	data := sampleData()
	encoded, err := c.Encode(ctx, data, codec.Fixed(uint64(len(data))), codec.Options{})
	require.NoError(t, err)
	encoded[0] ^= 0xFF
	rep, _ := c.EncodedRepresentation(codec.Fixed(uint64(len(data))))
	_, err = c.Decode(ctx, encoded, rep, codec.Options{})
	assert.ErrorIs(t, err, codec.ErrChecksumMismatch)
}

func TestFletcher32RoundTrip(t *testing.T) {
	data := sampleData()
	got := roundTrip(t, bytestobytes.NewFletcher32(), data)
	assert.Equal(t, data, got)
}

func TestFletcher32DetectsCorruption(t *testing.T) {
	c := bytestobytes.NewFletcher32()
	ctx := context.Background()
	data := sampleData()
	encoded, err := c.Encode(ctx, data, codec.Fixed(uint64(len(data))), codec.Options{})
	require.NoError(t, err)
	encoded[len(encoded)-1] ^= 0xFF
	rep, _ := c.EncodedRepresentation(codec.Fixed(uint64(len(data))))
	_, err = c.Decode(ctx, encoded, rep, codec.Options{})
	assert.ErrorIs(t, err, codec.ErrChecksumMismatch)
}

func TestGzipPartialDecodeWholeStream(t *testing.T) {
	ctx := context.Background()
	data := sampleData()
	g := bytestobytes.NewGzip(0)
	encoded, err := g.Encode(ctx, data, codec.Fixed(uint64(len(data))), codec.Options{})
	require.NoError(t, err)

	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "chunk", encoded))
	inner := partial.NewStorageDecoder(s, "chunk")

	pd, err := g.PartialDecoder(inner, codec.Fixed(uint64(len(data))), codec.Options{})
	require.NoError(t, err)

	size, err := pd.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), size)

	length := uint64(10)
	out, err := pd.PartialDecode(ctx, []store.Range{store.FromStart(5, &length)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, bytes.Equal(out[0], data[5:15]))
}

func TestCrc32cPartialDecodeForwardsRangesAndStripsSuffix(t *testing.T) {
	ctx := context.Background()
	data := sampleData()
	c := bytestobytes.NewCrc32c()
	encoded, err := c.Encode(ctx, data, codec.Fixed(uint64(len(data))), codec.Options{})
	require.NoError(t, err)

	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "chunk", encoded))
	inner := partial.NewStorageDecoder(s, "chunk")

	pd, err := c.PartialDecoder(inner, codec.Fixed(uint64(len(data))), codec.Options{})
	require.NoError(t, err)

	size, err := pd.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), size)

	length := uint64(4)
	out, err := pd.PartialDecode(ctx, []store.Range{store.FromStart(0, &length)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, data[0:4], out[0])
}

func TestBloscConstructionSetsName(t *testing.T) {
	// Only construction is checked here: neither Encode nor Decode is
	// called, so the blosc round trip is not exercised by this test.
	b := bytestobytes.NewBlosc(2, 5, "lz4")
	assert.Equal(t, "blosc", b.Name())
}
