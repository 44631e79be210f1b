package bytestobytes

import (
	"bytes"
	"context"

	"github.com/dsnet/compress/bzip2"

	"github.com/TuSKan/go-zarr/codec"
)

// Bz2 compresses with github.com/dsnet/compress/bzip2 (spec.md §4.3).
type Bz2 struct {
	Level int
}

func NewBz2(level int) *Bz2 {
	if level == 0 {
		level = bzip2.DefaultCompression
	}
	return &Bz2{Level: level}
}

func (b *Bz2) Name() string { return "bz2" }

func (b *Bz2) EncodedRepresentation(codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	return codec.Unbounded(), nil
}

func (b *Bz2) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: b.Level})
	if err != nil {
		return nil, codec.NewCodecError("bz2", err)
	}
	if _, err := w.Write(decoded); err != nil {
		return nil, codec.NewCodecError("bz2", err)
	}
	if err := w.Close(); err != nil {
		return nil, codec.NewCodecError("bz2", err)
	}
	return buf.Bytes(), nil
}

func (b *Bz2) Decode(_ context.Context, encoded []byte, rep codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(encoded), &bzip2.ReaderConfig{})
	if err != nil {
		return nil, codec.NewCodecError("bz2", err)
	}
	defer r.Close()
	out, err := readAllSized(r, rep)
	if err != nil {
		return nil, codec.NewCodecError("bz2", err)
	}
	return out, nil
}

func (b *Bz2) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

func (b *Bz2) PartialDecoderDecodesAll() bool       { return true }
func (b *Bz2) PartialDecoderShouldCacheInput() bool { return false }

func (b *Bz2) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.BytesRepresentation, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return newWholeStreamDecoder(inner, decoded, opts, b.Decode), nil
}
