// Package bytestobytes implements the bytes→bytes codecs named in spec.md
// §4.3: the whole-stream compressors (gzip, zstd, blosc, bz2, lz4) and the
// structural codecs that leave position mostly intact (crc32c, shuffle,
// fletcher32).
package bytestobytes

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/TuSKan/go-zarr/codec"
)

// Gzip compresses with DEFLATE/gzip framing via klauspost/compress/gzip, a
// drop-in faster replacement for compress/gzip (spec.md §4.3, grounded on
// the teacher's own "keep using the corpus's own compression libraries"
// precedent set by its blosc usage in reader.go).
type Gzip struct {
	Level int
}

func NewGzip(level int) *Gzip {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return &Gzip{Level: level}
}

func (g *Gzip) Name() string { return "gzip" }

func (g *Gzip) EncodedRepresentation(codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	return codec.Unbounded(), nil
}

func (g *Gzip) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.Level)
	if err != nil {
		return nil, codec.NewCodecError("gzip", err)
	}
	if _, err := w.Write(decoded); err != nil {
		return nil, codec.NewCodecError("gzip", err)
	}
	if err := w.Close(); err != nil {
		return nil, codec.NewCodecError("gzip", err)
	}
	return buf.Bytes(), nil
}

func (g *Gzip) Decode(_ context.Context, encoded []byte, rep codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(encoded))
	if err != nil {
		return nil, codec.NewCodecError("gzip", err)
	}
	defer r.Close()
	out, err := readAllSized(r, rep)
	if err != nil {
		return nil, codec.NewCodecError("gzip", err)
	}
	return out, nil
}

// readAllSized reads all of r, pre-sizing the destination buffer from rep's
// bound when one is known to avoid repeated reallocation.
func readAllSized(r io.Reader, rep codec.BytesRepresentation) ([]byte, error) {
	if bound, ok := rep.Bound(); ok {
		buf := bytes.NewBuffer(make([]byte, 0, bound))
		if _, err := buf.ReadFrom(r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return io.ReadAll(r)
}

func (g *Gzip) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

func (g *Gzip) PartialDecoderDecodesAll() bool       { return true }
func (g *Gzip) PartialDecoderShouldCacheInput() bool { return false }

func (g *Gzip) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.BytesRepresentation, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return newWholeStreamDecoder(inner, decoded, opts, g.Decode), nil
}
