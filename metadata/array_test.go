package metadata_test

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/metadata"
)

func TestParseArrayMetadata(t *testing.T) {
	doc := []byte(`{
		"zarr_format": 3,
		"node_type": "array",
		"shape": [4, 4],
		"data_type": "uint16",
		"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [2, 2]}},
		"chunk_key_encoding": {"name": "default", "configuration": {"separator": "/"}},
		"fill_value": 0,
		"codecs": [
			{"name": "bytes", "configuration": {"endian": "little"}},
			"gzip",
			{"name": "made_up", "must_understand": false}
		],
		"attributes": {"foo": "bar"}
	}`)

	m, err := metadata.Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 4}, m.Shape)
	assert.Equal(t, "uint16", m.DataType.Name)
	assert.Equal(t, []uint64{2, 2}, m.ChunkGrid.Configuration.ChunkShape)
	require.Len(t, m.Codecs, 3)
	assert.Equal(t, "gzip", m.Codecs[1].Name)
	assert.False(t, m.Codecs[2].Understood())

	enc, err := m.ChunkKeyEncoding.Encoding()
	require.NoError(t, err)
	assert.Equal(t, "c/1/1", enc.Key([]uint64{1, 1}))
}

func TestParseArrayMetadataRejectsWrongFormat(t *testing.T) {
	_, err := metadata.Parse([]byte(`{"zarr_format": 2, "node_type": "array"}`))
	assert.Error(t, err)
}

func TestParseFillValueFloatSpecials(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want bool // true if finite
	}{
		{`"NaN"`, false},
		{`"Infinity"`, false},
		{`"-Infinity"`, false},
		{`1.5`, true},
		{`"0x3f800000"`, true},
	} {
		fv, err := metadata.ParseFillValue(metadata.Float32, json.RawMessage(tc.raw))
		require.NoError(t, err, tc.raw)
		require.Len(t, fv, 4)
		f := float64(math.Float32frombits(binary.LittleEndian.Uint32(fv)))
		assert.Equal(t, tc.want, !math.IsInf(f, 0) && !math.IsNaN(f), tc.raw)
	}
}

func TestChunkKeyEncodingV2(t *testing.T) {
	enc := metadata.V2ChunkKeyEncoding()
	assert.Equal(t, "1.4", enc.Key([]uint64{1, 4}))
	assert.Equal(t, "0", enc.Key(nil))
}

func TestFillValueEqualAndRepeat(t *testing.T) {
	fv := metadata.FillValue{1, 1}
	assert.True(t, fv.Equal([]byte{1, 1, 1, 1}))
	assert.False(t, fv.Equal([]byte{1, 1, 0, 1}))
	assert.Equal(t, []byte{1, 1, 1, 1, 1, 1}, fv.Repeat(3))
}
