package zarr_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zarr "github.com/TuSKan/go-zarr"
	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

func putUint16s(t *testing.T, vs ...uint16) codec.ArrayBytes {
	t.Helper()
	buf := make([]byte, 2*len(vs))
	for i, v := range vs {
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return codec.NewFixed(buf)
}

func readUint16s(t *testing.T, ab codec.ArrayBytes, n int) []uint16 {
	t.Helper()
	require.Equal(t, codec.FixedLengthBytes, ab.Kind)
	require.Len(t, ab.Fixed, n*2)
	out := make([]uint16, n)
	for i := range out {
		b := ab.Fixed[i*2:]
		out[i] = uint16(b[0]) | uint16(b[1])<<8
	}
	return out
}

func putUint8s(vs ...uint8) codec.ArrayBytes {
	return codec.NewFixed(append([]byte(nil), vs...))
}

func readUint8s(t *testing.T, ab codec.ArrayBytes, n int) []uint8 {
	t.Helper()
	require.Equal(t, codec.FixedLengthBytes, ab.Kind)
	require.Len(t, ab.Fixed, n)
	return append([]byte(nil), ab.Fixed...)
}

func putFloat32sLE(vs ...float32) []byte {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		bits := math.Float32bits(v)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func readFloat32s(t *testing.T, ab codec.ArrayBytes, n int) []float32 {
	t.Helper()
	require.Equal(t, codec.FixedLengthBytes, ab.Kind)
	require.Len(t, ab.Fixed, n*4)
	out := make([]float32, n)
	for i := range out {
		b := ab.Fixed[i*4:]
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// Scenario 1 (spec.md §8.1): u16 array [4,4], chunk [2,2], chain =
// [endian(little), gzip(5)]. Write 0..16 row-major, read a cross-chunk
// subset back.
func TestScenarioU16EndianGzipSubsetRead(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	meta := &metadata.ArrayMetadata{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      []uint64{4, 4},
		DataType:   metadata.DataTypeMetadata{Name: "uint16"},
		FillValue:  json.RawMessage("0"),
		Codecs: []metadata.CodecMetadata{
			{Name: "bytes"},
			{Name: "gzip", Configuration: json.RawMessage(`{"level":5}`)},
		},
	}
	meta.ChunkGrid.Name = "regular"
	meta.ChunkGrid.Configuration.ChunkShape = []uint64{2, 2}
	meta.ChunkKeyEncoding.Name = "default"

	arr, err := zarr.CreateArray(ctx, s, "a", meta)
	require.NoError(t, err)

	vals := make([]uint16, 16)
	for i := range vals {
		vals[i] = uint16(i)
	}
	require.NoError(t, arr.WriteSubset(ctx, subset.FromOrigin([]uint64{4, 4}), putUint16s(t, vals...), codec.Options{}))

	region := subset.New([]uint64{1, 0}, []uint64{2, 2})
	got, err := arr.ReadSubset(ctx, region, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint16{4, 5, 8, 9}, readUint16s(t, got, 4))

	for _, key := range []string{"a/c/0/0", "a/c/0/1", "a/c/1/0", "a/c/1/1"} {
		_, err := s.Get(ctx, key)
		require.NoError(t, err, "chunk key %s should exist after a full-array write", key)
	}
}

// Scenario 2 (spec.md §8.2): f32 [2,4,4] sharded into one shard of shape
// [2,4,4] with inner chunks [1,2,2], inner chain [endian, gzip(1)], index
// chain [endian, crc32c].
func TestScenarioShardingCrossInnerChunkRead(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	shardCfg, err := json.Marshal(map[string]any{
		"chunk_shape": []uint64{1, 2, 2},
		"codecs": []metadata.CodecMetadata{
			{Name: "bytes"},
			{Name: "gzip", Configuration: json.RawMessage(`{"level":1}`)},
		},
		"index_codecs": []metadata.CodecMetadata{
			{Name: "bytes"},
			{Name: "crc32c"},
		},
		"index_location": "end",
	})
	require.NoError(t, err)

	meta := &metadata.ArrayMetadata{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      []uint64{2, 4, 4},
		DataType:   metadata.DataTypeMetadata{Name: "float32"},
		FillValue:  json.RawMessage("0.0"),
		Codecs: []metadata.CodecMetadata{
			{Name: "sharding_indexed", Configuration: shardCfg},
		},
	}
	meta.ChunkGrid.Name = "regular"
	meta.ChunkGrid.Configuration.ChunkShape = []uint64{2, 4, 4}
	meta.ChunkKeyEncoding.Name = "default"

	arr, err := zarr.CreateArray(ctx, s, "a", meta)
	require.NoError(t, err)

	vals := make([]float32, 32)
	for i := range vals {
		vals[i] = float32(i)
	}
	require.NoError(t, arr.WriteSubset(ctx, subset.FromOrigin([]uint64{2, 4, 4}), codec.NewFixed(putFloat32sLE(vals...)), codec.Options{}))

	region := subset.New([]uint64{1, 0, 0}, []uint64{1, 2, 3})
	got, err := arr.ReadSubset(ctx, region, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, []float32{16, 17, 18, 20, 21, 22}, readFloat32s(t, got, 6))

	raw, err := s.Get(ctx, "a/c/0/0/0")
	require.NoError(t, err)
	// 8 inner chunks * 16 bytes/entry + 4-byte crc32c trailer = 132 bytes
	// of index, appended after however many bytes the (compressed) inner
	// chunk payloads occupy.
	assert.Greater(t, len(raw), 132)
}

// Scenario 3 (spec.md §8.3): u8 chunk [4,4], chain = [endian], fill = 1.
// A chunk written as all-fill-value is erased, and reads synthesize it back.
func TestScenarioFillValueChunkIsErased(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	meta := &metadata.ArrayMetadata{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      []uint64{4, 4},
		DataType:   metadata.DataTypeMetadata{Name: "uint8"},
		FillValue:  json.RawMessage("1"),
		Codecs:     []metadata.CodecMetadata{{Name: "bytes"}},
	}
	meta.ChunkGrid.Name = "regular"
	meta.ChunkGrid.Configuration.ChunkShape = []uint64{4, 4}
	meta.ChunkKeyEncoding.Name = "default"

	arr, err := zarr.CreateArray(ctx, s, "a", meta)
	require.NoError(t, err)

	ones := make([]uint8, 16)
	for i := range ones {
		ones[i] = 1
	}
	require.NoError(t, arr.WriteChunk(ctx, subset.ChunkIndex{0, 0}, putUint8s(ones...), codec.Options{}))

	_, err = s.Get(ctx, "a/c/0/0")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := arr.ReadSubset(ctx, subset.New([]uint64{1, 1}, []uint64{2, 2}), codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 1, 1, 1}, readUint8s(t, got, 4))
}

// Scenario 4 (spec.md §8.4): partial overwrite of a u8 chunk [4,4] via
// read-modify-write, guarded by the per-chunk mutex.
func TestScenarioPartialOverwriteReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	meta := &metadata.ArrayMetadata{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      []uint64{4, 4},
		DataType:   metadata.DataTypeMetadata{Name: "uint8"},
		FillValue:  json.RawMessage("0"),
		Codecs:     []metadata.CodecMetadata{{Name: "bytes"}},
	}
	meta.ChunkGrid.Name = "regular"
	meta.ChunkGrid.Configuration.ChunkShape = []uint64{4, 4}
	meta.ChunkKeyEncoding.Name = "default"

	arr, err := zarr.CreateArray(ctx, s, "a", meta)
	require.NoError(t, err)

	initial := make([]uint8, 16)
	for i := range initial {
		initial[i] = uint8(i)
	}
	require.NoError(t, arr.WriteChunk(ctx, subset.ChunkIndex{0, 0}, putUint8s(initial...), codec.Options{}))

	patch := subset.New([]uint64{1, 1}, []uint64{2, 2})
	require.NoError(t, arr.WriteChunkSubset(ctx, subset.ChunkIndex{0, 0}, patch, putUint8s(100, 101, 102, 103), codec.Options{}))

	got, err := arr.ReadChunk(ctx, subset.ChunkIndex{0, 0}, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint8{
		0, 1, 2, 3,
		4, 100, 101, 7,
		8, 102, 103, 11,
		12, 13, 14, 15,
	}, readUint8s(t, got, 16))
}

// Scenario 5 (spec.md §8.5): variable-length strings round-trip their
// concatenated-payload-plus-offsets decoded form exactly.
func TestScenarioVariableLengthStringsPreserveOffsets(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	meta := &metadata.ArrayMetadata{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      []uint64{4},
		DataType:   metadata.DataTypeMetadata{Name: "string"},
		FillValue:  json.RawMessage(`""`),
		Codecs:     []metadata.CodecMetadata{{Name: "vlen-utf8"}},
	}
	meta.ChunkGrid.Name = "regular"
	meta.ChunkGrid.Configuration.ChunkShape = []uint64{4}
	meta.ChunkKeyEncoding.Name = "default"

	arr, err := zarr.CreateArray(ctx, s, "a", meta)
	require.NoError(t, err)

	words := []string{"a", "bb", "", "ccc"}
	payload := ""
	offsets := []uint64{0}
	for _, w := range words {
		payload += w
		offsets = append(offsets, offsets[len(offsets)-1]+uint64(len(w)))
	}
	data := codec.NewVariable([]byte(payload), offsets)

	require.NoError(t, arr.WriteChunk(ctx, subset.ChunkIndex{0}, data, codec.Options{}))

	got, err := arr.ReadChunk(ctx, subset.ChunkIndex{0}, codec.Options{})
	require.NoError(t, err)
	require.Equal(t, codec.VariableLengthBytes, got.Kind)
	assert.Equal(t, "abbccc", string(got.Payload))
	assert.Equal(t, []uint64{0, 1, 3, 3, 6}, got.Offsets)
}

// Scenario 6 (spec.md §8.6): a corrupted shard index entry makes a full
// chunk read fail instead of returning data; the test checks only that an
// error is returned, not which one.
func TestScenarioCorruptedShardIndexIsDetected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	shardCfg, err := json.Marshal(map[string]any{
		"chunk_shape": []uint64{2},
		"codecs":      []metadata.CodecMetadata{{Name: "bytes"}},
		"index_codecs": []metadata.CodecMetadata{
			{Name: "bytes"},
			{Name: "crc32c"},
		},
		"index_location": "end",
	})
	require.NoError(t, err)

	meta := &metadata.ArrayMetadata{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      []uint64{4},
		DataType:   metadata.DataTypeMetadata{Name: "int32"},
		FillValue:  json.RawMessage("0"),
		Codecs: []metadata.CodecMetadata{
			{Name: "sharding_indexed", Configuration: shardCfg},
		},
	}
	meta.ChunkGrid.Name = "regular"
	meta.ChunkGrid.Configuration.ChunkShape = []uint64{4}
	meta.ChunkKeyEncoding.Name = "default"

	arr, err := zarr.CreateArray(ctx, s, "a", meta)
	require.NoError(t, err)

	require.NoError(t, arr.WriteSubset(ctx, subset.FromOrigin([]uint64{4}), putInt32sScenario(1, 2, 3, 4), codec.Options{}))

	raw, err := s.Get(ctx, "a/c/0")
	require.NoError(t, err)

	corrupt := append([]byte(nil), raw...)
	// Rewrite the last index entry's offset field to an absurd value,
	// leaving the crc32c trailer stale so the index decode itself fails
	// closed rather than silently reading garbage.
	trailer := len(corrupt) - 4
	entryStart := trailer - 16
	big := uint64(1) << 60
	for i := 0; i < 8; i++ {
		corrupt[entryStart+i] = byte(big >> (8 * i))
	}
	require.NoError(t, s.Set(ctx, "a/c/0", corrupt))

	_, err = arr.ReadChunk(ctx, subset.ChunkIndex{0}, codec.Options{})
	assert.Error(t, err)
}

func putInt32sScenario(vs ...int32) codec.ArrayBytes {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		u := uint32(v)
		buf[i*4] = byte(u)
		buf[i*4+1] = byte(u >> 8)
		buf[i*4+2] = byte(u >> 16)
		buf[i*4+3] = byte(u >> 24)
	}
	return codec.NewFixed(buf)
}
