package bytestobytes

import (
	"context"

	blosc "github.com/mrjoshuak/go-blosc"

	"github.com/TuSKan/go-zarr/codec"
)

// Blosc wraps github.com/mrjoshuak/go-blosc, the compressor the teacher
// reader.go already decodes with (blosc.Decompress, reader.go:147). Blosc's
// own framing carries the element size and shape needed to reconstruct the
// stream, so ElementSize only affects Encode's shuffle granularity.
type Blosc struct {
	ElementSize int
	Level       int
	Compressor  string
}

func NewBlosc(elementSize, level int, compressor string) *Blosc {
	if level == 0 {
		level = 5
	}
	if compressor == "" {
		compressor = "lz4"
	}
	return &Blosc{ElementSize: elementSize, Level: level, Compressor: compressor}
}

func (b *Blosc) Name() string { return "blosc" }

func (b *Blosc) EncodedRepresentation(codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	return codec.Unbounded(), nil
}

func (b *Blosc) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	out, err := blosc.Compress(decoded, b.ElementSize, b.Level)
	if err != nil {
		return nil, codec.NewCodecError("blosc", err)
	}
	return out, nil
}

// Decode mirrors the teacher's own call shape exactly: blosc.Decompress
// takes only the encoded bytes (reader.go:147), since blosc's header is
// self-describing.
func (b *Blosc) Decode(_ context.Context, encoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	out, err := blosc.Decompress(encoded)
	if err != nil {
		return nil, codec.NewCodecError("blosc", err)
	}
	return out, nil
}

func (b *Blosc) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

func (b *Blosc) PartialDecoderDecodesAll() bool       { return true }
func (b *Blosc) PartialDecoderShouldCacheInput() bool { return false }

func (b *Blosc) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.BytesRepresentation, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return newWholeStreamDecoder(inner, decoded, opts, b.Decode), nil
}
