package zarr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/metadata"
)

func TestBuildChainDefaultsToLittleEndianBytes(t *testing.T) {
	c, err := buildChain(metadata.Int32, nil)
	require.NoError(t, err)
	require.NotNil(t, c.ArrayToBytes)
	assert.Equal(t, "bytes", c.ArrayToBytes.Name())
}

func TestBuildChainRejectsTwoArrayToBytesCodecs(t *testing.T) {
	_, err := buildChain(metadata.Int32, []metadata.CodecMetadata{
		{Name: "bytes"},
		{Name: "vlen-utf8"},
	})
	assert.Error(t, err)
}

func TestBuildChainDispatchesBytesToBytesCodecs(t *testing.T) {
	c, err := buildChain(metadata.Int32, []metadata.CodecMetadata{
		{Name: "bytes"},
		{Name: "gzip"},
		{Name: "crc32c"},
	})
	require.NoError(t, err)
	require.Len(t, c.BytesToBytes, 2)
	assert.Equal(t, "gzip", c.BytesToBytes[0].Name())
	assert.Equal(t, "crc32c", c.BytesToBytes[1].Name())
}

func TestBuildChainUnknownCodecMustUnderstandErrors(t *testing.T) {
	_, err := buildChain(metadata.Int32, []metadata.CodecMetadata{
		{Name: "bytes"},
		{Name: "some-future-codec"},
	})
	assert.Error(t, err)
}

func TestBuildChainUnknownCodecSkippedWhenNotMustUnderstand(t *testing.T) {
	no := false
	c, err := buildChain(metadata.Int32, []metadata.CodecMetadata{
		{Name: "bytes"},
		{Name: "some-future-codec", MustUnderstand: &no},
	})
	require.NoError(t, err)
	assert.Empty(t, c.BytesToBytes)
}

func TestBuildChainTransposeConfiguration(t *testing.T) {
	cfg, err := json.Marshal(map[string]any{"order": []int{1, 0}})
	require.NoError(t, err)
	c, err := buildChain(metadata.Int32, []metadata.CodecMetadata{
		{Name: "transpose", Configuration: cfg},
		{Name: "bytes"},
	})
	require.NoError(t, err)
	require.Len(t, c.ArrayToArray, 1)
	assert.Equal(t, "transpose", c.ArrayToArray[0].Name())
}

func TestBuildChainShardingIndexed(t *testing.T) {
	cfg, err := json.Marshal(map[string]any{
		"chunk_shape":    []uint64{2},
		"codecs":         []metadata.CodecMetadata{{Name: "bytes"}},
		"index_codecs":   []metadata.CodecMetadata{{Name: "crc32c"}},
		"index_location": "end",
	})
	require.NoError(t, err)
	c, err := buildChain(metadata.Int32, []metadata.CodecMetadata{
		{Name: "sharding_indexed", Configuration: cfg},
	})
	require.NoError(t, err)
	assert.Equal(t, "sharding_indexed", c.ArrayToBytes.Name())
}
