package bytestobytes

import (
	"context"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/TuSKan/go-zarr/codec"
)

// Zstd compresses with klauspost/compress/zstd's stateless EncodeAll/
// DecodeAll API, pooling encoder/decoder instances the way arloliu-mebo's
// compress package does (spec.md §4.3).
type Zstd struct {
	Level zstd.EncoderLevel
}

func NewZstd(level zstd.EncoderLevel) *Zstd {
	if level == 0 {
		level = zstd.SpeedDefault
	}
	return &Zstd{Level: level}
}

var (
	zstdEncoderPool sync.Map // zstd.EncoderLevel -> *zstd.Encoder
	zstdDecoderOnce sync.Once
	zstdDecoderInst *zstd.Decoder
	zstdDecoderErr  error
)

func zstdEncoderFor(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	if v, ok := zstdEncoderPool.Load(level); ok {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	actual, _ := zstdEncoderPool.LoadOrStore(level, enc)
	return actual.(*zstd.Encoder), nil
}

func zstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoderInst, zstdDecoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdDecoderInst, zstdDecoderErr
}

func (z *Zstd) Name() string { return "zstd" }

func (z *Zstd) EncodedRepresentation(codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	return codec.Unbounded(), nil
}

func (z *Zstd) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	enc, err := zstdEncoderFor(z.Level)
	if err != nil {
		return nil, codec.NewCodecError("zstd", err)
	}
	return enc.EncodeAll(decoded, nil), nil
}

func (z *Zstd) Decode(_ context.Context, encoded []byte, rep codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, codec.NewCodecError("zstd", err)
	}
	var hint []byte
	if bound, ok := rep.Bound(); ok {
		hint = make([]byte, 0, bound)
	}
	out, err := dec.DecodeAll(encoded, hint)
	if err != nil {
		return nil, codec.NewCodecError("zstd", fmt.Errorf("decompress: %w", err))
	}
	return out, nil
}

func (z *Zstd) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

func (z *Zstd) PartialDecoderDecodesAll() bool       { return true }
func (z *Zstd) PartialDecoderShouldCacheInput() bool { return false }

func (z *Zstd) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.BytesRepresentation, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return newWholeStreamDecoder(inner, decoded, opts, z.Decode), nil
}
