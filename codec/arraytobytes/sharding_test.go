package arraytobytes_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/arraytobytes"
	"github.com/TuSKan/go-zarr/codec/chain"
	"github.com/TuSKan/go-zarr/codec/partial"
	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

func u16Buffer(values ...uint16) []byte {
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	return buf
}

func newInnerChain(t *testing.T) *chain.Chain {
	t.Helper()
	c, err := chain.New(nil, arraytobytes.NewBytes(arraytobytes.LittleEndian), nil)
	require.NoError(t, err)
	return c
}

// A 4x4 uint16 shard, split into 2x2 inner chunks (a 2x2 grid of inner chunks).
func TestShardingEncodeDecodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	rep := codec.ChunkRepresentation{Shape: []uint64{4, 4}, DataType: metadata.Uint16}
	values := make([]uint16, 16)
	for i := range values {
		values[i] = uint16(i)
	}
	decoded := codec.NewFixed(u16Buffer(values...))

	sh, err := arraytobytes.NewSharding([]uint64{2, 2}, newInnerChain(t), nil, arraytobytes.IndexEnd)
	require.NoError(t, err)

	encoded, err := sh.Encode(ctx, decoded, rep, codec.Options{})
	require.NoError(t, err)

	back, err := sh.Decode(ctx, encoded, rep, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, decoded.Fixed, back.Fixed)
}

func TestShardingSkipsAllFillValueInnerChunk(t *testing.T) {
	ctx := context.Background()
	fill := metadata.FillValue{0, 0}
	rep := codec.ChunkRepresentation{Shape: []uint64{4, 4}, DataType: metadata.Uint16, FillValue: fill}
	values := make([]uint16, 16)
	// Top-left 2x2 inner chunk (rows 0-1, cols 0-1) stays at the fill value (zero).
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if r < 2 && c < 2 {
				continue
			}
			values[r*4+c] = uint16(r*4 + c + 1)
		}
	}
	decoded := codec.NewFixed(u16Buffer(values...))

	sh, err := arraytobytes.NewSharding([]uint64{2, 2}, newInnerChain(t), nil, arraytobytes.IndexEnd)
	require.NoError(t, err)

	encoded, err := sh.Encode(ctx, decoded, rep, codec.Options{})
	require.NoError(t, err)

	// The all-fill-value inner chunk contributes nothing to the body, so the
	// shard is smaller than the uncompressed 16*2=32 bytes of data plus index.
	assert.Less(t, len(encoded), 32+16*4)

	back, err := sh.Decode(ctx, encoded, rep, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, decoded.Fixed, back.Fixed)
}

func TestShardingPartialDecode(t *testing.T) {
	ctx := context.Background()
	rep := codec.ChunkRepresentation{Shape: []uint64{4, 4}, DataType: metadata.Uint16}
	values := make([]uint16, 16)
	for i := range values {
		values[i] = uint16(i)
	}
	decoded := codec.NewFixed(u16Buffer(values...))

	sh, err := arraytobytes.NewSharding([]uint64{2, 2}, newInnerChain(t), nil, arraytobytes.IndexEnd)
	require.NoError(t, err)

	encoded, err := sh.Encode(ctx, decoded, rep, codec.Options{})
	require.NoError(t, err)

	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "shard", encoded))
	storageDecoder := partial.NewStorageDecoder(s, "shard")

	pd, err := sh.PartialDecoder(storageDecoder, rep, codec.Options{})
	require.NoError(t, err)

	// Request the bottom-right 2x2 region (rows 2-3, cols 2-3): values 10,11,14,15.
	want := subset.New([]uint64{2, 2}, []uint64{2, 2})
	out, err := pd.PartialDecode(ctx, []subset.Subset{want}, codec.Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := make([]uint16, 4)
	for i := range got {
		got[i] = binary.LittleEndian.Uint16(out[0].Fixed[2*i:])
	}
	assert.Equal(t, []uint16{10, 11, 14, 15}, got)
}

func TestShardingCorruptedIndexOutOfBounds(t *testing.T) {
	ctx := context.Background()
	rep := codec.ChunkRepresentation{Shape: []uint64{2, 2}, DataType: metadata.Uint16}
	decoded := codec.NewFixed(u16Buffer(1, 2, 3, 4))

	sh, err := arraytobytes.NewSharding([]uint64{2, 2}, newInnerChain(t), nil, arraytobytes.IndexEnd)
	require.NoError(t, err)

	encoded, err := sh.Encode(ctx, decoded, rep, codec.Options{})
	require.NoError(t, err)

	// Corrupt the index's length field to claim far more bytes than the body has.
	corrupted := make([]byte, len(encoded))
	copy(corrupted, encoded)
	binary.LittleEndian.PutUint64(corrupted[len(corrupted)-8:], 1<<40)

	_, err = sh.Decode(ctx, corrupted, rep, codec.Options{})
	assert.ErrorIs(t, err, codec.ErrCodecSpecific)
}
