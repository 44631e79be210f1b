package bytestobytes

import (
	"context"
	"errors"

	"github.com/pierrec/lz4/v4"

	"github.com/TuSKan/go-zarr/codec"
)

// Lz4 compresses single blocks with github.com/pierrec/lz4/v4's block API,
// using a fresh lz4.Compressor per Encode call and an adaptive-retry
// (buffer-doubling) Decode (spec.md §4.3). Since the bytes→bytes Decode contract is handed the
// pre-compression BytesRepresentation, the destination buffer is sized from
// its bound when known instead of guessing a 4x expansion ratio.
type Lz4 struct{}

func NewLz4() *Lz4 { return &Lz4{} }

func (l *Lz4) Name() string { return "lz4" }

func (l *Lz4) EncodedRepresentation(codec.BytesRepresentation) (codec.BytesRepresentation, error) {
	return codec.Unbounded(), nil
}

func (l *Lz4) Encode(_ context.Context, decoded []byte, _ codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	if len(decoded) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(decoded)))
	var c lz4.Compressor
	n, err := c.CompressBlock(decoded, dst)
	if err != nil {
		return nil, codec.NewCodecError("lz4", err)
	}
	if n == 0 {
		// Incompressible input: lz4.Compressor leaves dst untouched and
		// returns n=0. Store the raw bytes with a one-byte marker so Decode
		// can tell the two cases apart.
		out := make([]byte, len(decoded)+1)
		out[0] = 0
		copy(out[1:], decoded)
		return out, nil
	}
	out := make([]byte, n+1)
	out[0] = 1
	copy(out[1:], dst[:n])
	return out, nil
}

func (l *Lz4) Decode(_ context.Context, encoded []byte, rep codec.BytesRepresentation, _ codec.Options) ([]byte, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	marker, body := encoded[0], encoded[1:]
	if marker == 0 {
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}

	bufSize := len(body) * 4
	if bound, ok := rep.Bound(); ok && bound > 0 {
		bufSize = int(bound)
	}
	const maxSize = 128 * 1024 * 1024
	for bufSize <= maxSize {
		dst := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}
			return nil, codec.NewCodecError("lz4", err)
		}
		return dst[:n], nil
	}
	return nil, codec.NewCodecError("lz4", lz4.ErrInvalidSourceShortBuffer)
}

func (l *Lz4) RecommendedConcurrency(codec.BytesRepresentation) codec.ConcurrencyLimit {
	return codec.Serial()
}

func (l *Lz4) PartialDecoderDecodesAll() bool       { return true }
func (l *Lz4) PartialDecoderShouldCacheInput() bool { return false }

func (l *Lz4) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.BytesRepresentation, opts codec.Options) (codec.BytesPartialDecoder, error) {
	return newWholeStreamDecoder(inner, decoded, opts, l.Decode), nil
}
