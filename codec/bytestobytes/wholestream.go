package bytestobytes

import (
	"context"
	"sync"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/store"
)

// decodeFunc is a codec's own Decode method, used by wholeStreamDecoder to
// turn the fully-fetched encoded stream into decoded bytes exactly once.
type decodeFunc func(ctx context.Context, encoded []byte, rep codec.BytesRepresentation, opts codec.Options) ([]byte, error)

// wholeStreamDecoder adapts a whole-stream compressor (gzip, zstd, blosc,
// bz2) into a BytesPartialDecoder: true sub-range decoding isn't possible
// for these formats, so the first call decodes the entire stream and every
// subsequent range request (including earlier ones in the same call) is
// served by slicing the cached result (spec.md §4.3 "partial decoders that
// decode everything on first read").
type wholeStreamDecoder struct {
	inner  codec.BytesPartialDecoder
	rep    codec.BytesRepresentation
	opts   codec.Options
	decode decodeFunc

	once    sync.Once
	decoded []byte
	err     error
}

func newWholeStreamDecoder(inner codec.BytesPartialDecoder, rep codec.BytesRepresentation, opts codec.Options, decode decodeFunc) *wholeStreamDecoder {
	return &wholeStreamDecoder{inner: inner, rep: rep, opts: opts, decode: decode}
}

func (w *wholeStreamDecoder) ensure(ctx context.Context) ([]byte, error) {
	w.once.Do(func() {
		size, err := w.inner.Size(ctx)
		if err != nil {
			w.err = err
			return
		}
		chunks, err := w.inner.PartialDecode(ctx, []store.Range{store.FromStart(0, &size)})
		if err != nil {
			w.err = err
			return
		}
		w.decoded, w.err = w.decode(ctx, chunks[0], w.rep, w.opts)
	})
	return w.decoded, w.err
}

func (w *wholeStreamDecoder) Size(ctx context.Context) (uint64, error) {
	decoded, err := w.ensure(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(decoded)), nil
}

func (w *wholeStreamDecoder) PartialDecode(ctx context.Context, ranges []store.Range) ([][]byte, error) {
	decoded, err := w.ensure(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(ranges))
	for i, r := range ranges {
		start, end, err := r.Resolve(uint64(len(decoded)))
		if err != nil {
			return nil, err
		}
		out[i] = decoded[start:end]
	}
	return out, nil
}
