package arraytobytes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/arraytobytes"
	"github.com/TuSKan/go-zarr/metadata"
)

func TestVlenInterleavedRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := arraytobytes.NewVlen(arraytobytes.InterleavedLayout)
	rep := codec.ChunkRepresentation{Shape: []uint64{3}, DataType: metadata.String}
	decoded := codec.NewVariable([]byte("abbccc"), []uint64{0, 1, 3, 6})

	encoded, err := v.Encode(ctx, decoded, rep, codec.Options{})
	require.NoError(t, err)

	back, err := v.Decode(ctx, encoded, rep, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, decoded.Payload, back.Payload)
	assert.Equal(t, decoded.Offsets, back.Offsets)
}

func TestVlenV2OffsetsRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := arraytobytes.NewVlen(arraytobytes.V2OffsetArrayLayout)
	rep := codec.ChunkRepresentation{Shape: []uint64{3}, DataType: metadata.String}
	decoded := codec.NewVariable([]byte("abbccc"), []uint64{0, 1, 3, 6})

	encoded, err := v.Encode(ctx, decoded, rep, codec.Options{})
	require.NoError(t, err)

	back, err := v.Decode(ctx, encoded, rep, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, decoded.Payload, back.Payload)
	assert.Equal(t, decoded.Offsets, back.Offsets)
}

func TestVlenRejectsFixedLengthType(t *testing.T) {
	_, err := arraytobytes.NewVlen(arraytobytes.InterleavedLayout).EncodedRepresentation(codec.ChunkRepresentation{DataType: metadata.Int32})
	assert.ErrorIs(t, err, codec.ErrUnsupportedDataType)
}

func TestVlenDecodeTruncatedInterleaved(t *testing.T) {
	ctx := context.Background()
	v := arraytobytes.NewVlen(arraytobytes.InterleavedLayout)
	rep := codec.ChunkRepresentation{Shape: []uint64{3}, DataType: metadata.String}
	_, err := v.Decode(ctx, []byte{3, 0, 0, 0}, rep, codec.Options{})
	assert.Error(t, err)
}
