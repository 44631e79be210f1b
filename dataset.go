package zarr

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/subset"
)

// Dataset reads an Array in batches along its leading dimension, for
// feeding a training loop, adapted from the teacher's dataset.go (which
// read chunk files directly and decompressed them by hand for a zarr v2
// array). Chunk decomposition, codec decoding and fill-value synthesis are
// delegated entirely to Array.ReadSubset; Dataset only windows dimension 0
// and converts the decoded fixed-length bytes into a gomlx tensor.
type Dataset struct {
	array        *Array
	batchSize    int
	currentIndex uint64
}

// NewDataset wraps arr for batched reads of batchSize rows along dimension
// 0. arr's data type must be fixed-length and arr must have at least one
// dimension.
func NewDataset(arr *Array, batchSize int) (*Dataset, error) {
	if len(arr.Shape()) == 0 {
		return nil, fmt.Errorf("zarr: dataset requires at least one dimension")
	}
	if arr.dataType.IsVariableLength() {
		return nil, fmt.Errorf("zarr: dataset does not support variable-length data type %s", arr.dataType)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("zarr: batch size must be positive")
	}
	return &Dataset{array: arr, batchSize: batchSize}, nil
}

// Reset rewinds the dataset to the first row.
func (d *Dataset) Reset() { d.currentIndex = 0 }

// NextBatch reads the next batch of up to d.batchSize rows along dimension
// 0, returning a tensor shaped [actualBatchSize, shape[1:]...]. Returns
// io.EOF once every row has been read.
func (d *Dataset) NextBatch(ctx context.Context) (*tensors.Tensor, error) {
	shape := d.array.Shape()
	if d.currentIndex >= shape[0] {
		return nil, io.EOF
	}

	start := d.currentIndex
	end := start + uint64(d.batchSize)
	if end > shape[0] {
		end = shape[0]
	}

	regionStart := make([]uint64, len(shape))
	regionShape := make([]uint64, len(shape))
	regionStart[0] = start
	regionShape[0] = end - start
	for i := 1; i < len(shape); i++ {
		regionShape[i] = shape[i]
	}
	region := subset.New(regionStart, regionShape)

	data, err := d.array.ReadSubset(ctx, region, codec.Options{})
	if err != nil {
		return nil, err
	}

	batchShape := make([]int, len(regionShape))
	for i, v := range regionShape {
		batchShape[i] = int(v)
	}

	t, err := toTensor(d.array.dataType, data.Fixed, batchShape)
	if err != nil {
		return nil, err
	}
	d.currentIndex = end
	return t, nil
}

// toTensor decodes a little-endian fixed-stride buffer into the gomlx
// tensor matching dt, mirroring the teacher's per-dtype switch in
// copyChunkToBatch/NextBatch but operating on an already-decoded buffer
// instead of raw chunk bytes.
func toTensor(dt metadata.DataType, buf []byte, dims []int) (*tensors.Tensor, error) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	switch dt {
	case metadata.Float32:
		v := make([]float32, n)
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(v, dims...), nil
	case metadata.Float64:
		v := make([]float64, n)
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(v, dims...), nil
	case metadata.Int32:
		v := make([]int32, n)
		for i := range v {
			v[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(v, dims...), nil
	case metadata.Int64:
		v := make([]int64, n)
		for i := range v {
			v[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(v, dims...), nil
	case metadata.Uint8, metadata.Bool:
		v := make([]uint8, n)
		copy(v, buf[:n])
		return tensors.FromFlatDataAndDimensions(v, dims...), nil
	default:
		return nil, fmt.Errorf("%w: dataset does not support dtype %s", codec.ErrUnsupportedDataType, dt)
	}
}
