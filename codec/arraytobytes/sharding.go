package arraytobytes

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/chain"
	"github.com/TuSKan/go-zarr/codec/partial"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

// emptySentinel marks an inner chunk that was never written (spec.md §4.4
// "u64::MAX sentinel for empty inner chunks"): both the offset and length
// fields of its index entry are set to this value, and such a chunk decodes
// to the array's fill value without ever touching storage.
const emptySentinel = math.MaxUint64

// IndexLocation selects whether the shard index is written before or after
// the packed inner chunk data (spec.md §4.4).
type IndexLocation int

const (
	IndexEnd IndexLocation = iota
	IndexStart
)

// Sharding packs every inner chunk of ChunkShape within a shard's decoded
// region into a single encoded object, alongside a compact (offset, length)
// index, so that one array chunk can itself be a mini Zarr array store
// (spec.md §4.4). Codecs encodes each inner chunk; IndexCodecs encodes the
// raw index bytes (in practice just a checksum, e.g. crc32c — anything that
// changes the index's size unpredictably breaks the fixed-offset invariant
// this codec relies on, so IndexCodecs must produce a FixedSizeKind
// representation).
type Sharding struct {
	ChunkShape    []uint64
	Codecs        *chain.Chain
	IndexCodecs   []codec.BytesToBytesCodec
	IndexLocation IndexLocation
}

// NewSharding validates and builds a Sharding codec.
func NewSharding(chunkShape []uint64, codecs *chain.Chain, indexCodecs []codec.BytesToBytesCodec, loc IndexLocation) (*Sharding, error) {
	for i, d := range chunkShape {
		if d == 0 {
			return nil, fmt.Errorf("codec: sharding inner chunk shape dimension %d is zero", i)
		}
	}
	if codecs == nil {
		return nil, fmt.Errorf("codec: sharding requires an inner codec chain")
	}
	return &Sharding{ChunkShape: chunkShape, Codecs: codecs, IndexCodecs: indexCodecs, IndexLocation: loc}, nil
}

func (s *Sharding) Name() string { return "sharding_indexed" }

func (s *Sharding) innerGrid(decoded codec.ChunkRepresentation) (subset.RegularGrid, error) {
	return subset.NewRegularGrid(decoded.Shape, s.ChunkShape)
}

func (s *Sharding) numInnerChunks(decoded codec.ChunkRepresentation) (uint64, error) {
	grid, err := s.innerGrid(decoded)
	if err != nil {
		return 0, err
	}
	n := uint64(1)
	for _, d := range grid.GridShape() {
		n *= d
	}
	return n, nil
}

// indexEncodedSize returns the byte size of the encoded index for a shard
// with n inner chunks, requiring IndexCodecs to preserve a known fixed size.
func (s *Sharding) indexEncodedSize(n uint64) (uint64, error) {
	rep := codec.Fixed(n * 16)
	for _, c := range s.IndexCodecs {
		next, err := c.EncodedRepresentation(rep)
		if err != nil {
			return 0, fmt.Errorf("codec: sharding index codec %s: %w", c.Name(), err)
		}
		rep = next
	}
	if rep.Kind != codec.FixedSizeKind {
		return 0, fmt.Errorf("%w: sharding index codecs must produce a fixed-size encoding", codec.ErrCodecSpecific)
	}
	return rep.Size, nil
}

func addSize(a, b codec.BytesRepresentation) codec.BytesRepresentation {
	switch {
	case a.Kind == codec.UnboundedSizeKind || b.Kind == codec.UnboundedSizeKind:
		return codec.Unbounded()
	case a.Kind == codec.BoundedSizeKind || b.Kind == codec.BoundedSizeKind:
		return codec.Bounded(a.Size + b.Size)
	default:
		return codec.Fixed(a.Size + b.Size)
	}
}

func (s *Sharding) EncodedRepresentation(decoded codec.ChunkRepresentation) (codec.BytesRepresentation, error) {
	grid, err := s.innerGrid(decoded)
	if err != nil {
		return codec.BytesRepresentation{}, err
	}
	n, err := s.numInnerChunks(decoded)
	if err != nil {
		return codec.BytesRepresentation{}, err
	}
	indexSize, err := s.indexEncodedSize(n)
	if err != nil {
		return codec.BytesRepresentation{}, err
	}
	total := codec.Fixed(indexSize)
	err = forEachInnerChunk(grid, func(idx subset.ChunkIndex) error {
		shape, err := grid.ChunkShapeAt(idx)
		if err != nil {
			return err
		}
		innerRep := codec.ChunkRepresentation{Shape: shape, DataType: decoded.DataType, FillValue: decoded.FillValue}
		encRep, err := s.Codecs.EncodedRepresentation(innerRep)
		if err != nil {
			return err
		}
		total = addSize(total, encRep)
		return nil
	})
	if err != nil {
		return codec.BytesRepresentation{}, err
	}
	return total, nil
}

// forEachInnerChunk visits every chunk index of grid in row-major order.
func forEachInnerChunk(grid subset.RegularGrid, fn func(idx subset.ChunkIndex) error) error {
	gridShape := grid.GridShape()
	n := len(gridShape)
	if n == 0 {
		return fn(subset.ChunkIndex{})
	}
	idx := make(subset.ChunkIndex, n)
	for {
		if err := fn(idx.Clone()); err != nil {
			return err
		}
		d := n - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < gridShape[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			break
		}
	}
	return nil
}

type indexEntry struct {
	offset uint64
	length uint64
}

func (s *Sharding) Encode(ctx context.Context, decoded codec.ArrayBytes, rep codec.ChunkRepresentation, opts codec.Options) ([]byte, error) {
	grid, err := s.innerGrid(rep)
	if err != nil {
		return nil, err
	}
	whole := rep.AsSubset()

	var entries []indexEntry
	var body []byte
	err = forEachInnerChunk(grid, func(idx subset.ChunkIndex) error {
		chunkSubset, err := grid.SubsetOf(idx)
		if err != nil {
			return err
		}
		innerRep := codec.ChunkRepresentation{Shape: chunkSubset.Shape, DataType: rep.DataType, FillValue: rep.FillValue}
		piece, err := partial.ExtractArraySubset(decoded, whole, chunkSubset, rep)
		if err != nil {
			return err
		}
		if isAllFillValue(piece, innerRep) {
			entries = append(entries, indexEntry{offset: emptySentinel, length: emptySentinel})
			return nil
		}
		encoded, err := s.Codecs.Encode(ctx, piece, innerRep, opts)
		if err != nil {
			return fmt.Errorf("codec: sharding inner chunk %s encode: %w", idx, err)
		}
		entries = append(entries, indexEntry{offset: uint64(len(body)), length: uint64(len(encoded))})
		body = append(body, encoded...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rawIndex := make([]byte, 0, len(entries)*16)
	for _, e := range entries {
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:8], e.offset)
		binary.LittleEndian.PutUint64(buf[8:16], e.length)
		rawIndex = append(rawIndex, buf[:]...)
	}
	encIndex := rawIndex
	for _, c := range s.IndexCodecs {
		encIndex, err = c.Encode(ctx, encIndex, codec.Fixed(uint64(len(rawIndex))), opts)
		if err != nil {
			return nil, fmt.Errorf("codec: sharding index codec %s encode: %w", c.Name(), err)
		}
	}

	if s.IndexLocation == IndexStart {
		out := make([]byte, 0, len(encIndex)+len(body))
		out = append(out, encIndex...)
		out = append(out, body...)
		return out, nil
	}
	out := make([]byte, 0, len(body)+len(encIndex))
	out = append(out, body...)
	out = append(out, encIndex...)
	return out, nil
}

// isAllFillValue reports whether piece decodes to nothing but the fill
// value, in which case it need not be written to the shard at all.
func isAllFillValue(piece codec.ArrayBytes, rep codec.ChunkRepresentation) bool {
	if len(rep.FillValue) == 0 {
		return false
	}
	if piece.Kind == codec.VariableLengthBytes {
		return false
	}
	elemSize, ok := rep.DataType.FixedSize()
	if !ok || elemSize != len(rep.FillValue) {
		return false
	}
	for off := 0; off+elemSize <= len(piece.Fixed); off += elemSize {
		for i := 0; i < elemSize; i++ {
			if piece.Fixed[off+i] != rep.FillValue[i] {
				return false
			}
		}
	}
	return true
}

func (s *Sharding) decodeIndex(ctx context.Context, encoded []byte, n uint64, opts codec.Options) ([]indexEntry, []byte, error) {
	indexSize, err := s.indexEncodedSize(n)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(encoded)) < indexSize {
		return nil, nil, fmt.Errorf("%w: shard too short for index of size %d", codec.ErrUnexpectedDecodedSize, indexSize)
	}
	var encIndex, body []byte
	if s.IndexLocation == IndexStart {
		encIndex, body = encoded[:indexSize], encoded[indexSize:]
	} else {
		body, encIndex = encoded[:uint64(len(encoded))-indexSize], encoded[uint64(len(encoded))-indexSize:]
	}
	entries, err := s.parseIndex(ctx, encIndex, n, uint64(len(body)), opts)
	if err != nil {
		return nil, nil, err
	}
	return entries, body, nil
}

// parseIndex runs encIndex back through IndexCodecs and checks every entry
// against a shard body of bodyLen bytes.
func (s *Sharding) parseIndex(ctx context.Context, encIndex []byte, n, bodyLen uint64, opts codec.Options) ([]indexEntry, error) {
	rawIndex := encIndex
	var err error
	for i := len(s.IndexCodecs) - 1; i >= 0; i-- {
		rawIndex, err = s.IndexCodecs[i].Decode(ctx, rawIndex, codec.Fixed(n*16), opts)
		if err != nil {
			return nil, fmt.Errorf("%w: sharding index codec %s: %v", codec.ErrChecksumMismatch, s.IndexCodecs[i].Name(), err)
		}
	}
	if uint64(len(rawIndex)) != n*16 {
		return nil, fmt.Errorf("%w: decoded shard index is %d bytes, expected %d", codec.ErrUnexpectedDecodedSize, len(rawIndex), n*16)
	}
	entries := make([]indexEntry, n)
	for i := uint64(0); i < n; i++ {
		entries[i].offset = binary.LittleEndian.Uint64(rawIndex[i*16:])
		entries[i].length = binary.LittleEndian.Uint64(rawIndex[i*16+8:])
		if (entries[i].offset == emptySentinel) != (entries[i].length == emptySentinel) {
			return nil, fmt.Errorf("%w: shard index entry %d has mismatched empty sentinel", codec.ErrCodecSpecific, i)
		}
		if entries[i].offset != emptySentinel && entries[i].offset+entries[i].length > bodyLen {
			return nil, fmt.Errorf("%w: shard index entry %d range [%d,%d) exceeds shard body of %d bytes", codec.ErrCodecSpecific, i, entries[i].offset, entries[i].offset+entries[i].length, bodyLen)
		}
	}
	return entries, nil
}

func (s *Sharding) Decode(ctx context.Context, encoded []byte, rep codec.ChunkRepresentation, opts codec.Options) (codec.ArrayBytes, error) {
	grid, err := s.innerGrid(rep)
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	n, err := s.numInnerChunks(rep)
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	entries, body, err := s.decodeIndex(ctx, encoded, n, opts)
	if err != nil {
		return codec.ArrayBytes{}, err
	}

	out := newAssembler(rep.DataType, rep.Shape)
	i := 0
	err = forEachInnerChunk(grid, func(idx subset.ChunkIndex) error {
		e := entries[i]
		i++
		chunkSubset, err := grid.SubsetOf(idx)
		if err != nil {
			return err
		}
		innerRep := codec.ChunkRepresentation{Shape: chunkSubset.Shape, DataType: rep.DataType, FillValue: rep.FillValue}
		var piece codec.ArrayBytes
		if e.offset == emptySentinel {
			piece, err = fillValuePiece(innerRep)
		} else {
			piece, err = s.Codecs.Decode(ctx, body[e.offset:e.offset+e.length], innerRep, opts)
		}
		if err != nil {
			return fmt.Errorf("codec: sharding inner chunk %s decode: %w", idx, err)
		}
		return out.place(chunkSubset, piece)
	})
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	result := out.finish()
	if err := result.Validate(rep); err != nil {
		return codec.ArrayBytes{}, err
	}
	return result, nil
}

func fillValuePiece(rep codec.ChunkRepresentation) (codec.ArrayBytes, error) {
	if rep.DataType.IsVariableLength() {
		n := rep.NumElements()
		offsets := make([]uint64, n+1)
		return codec.NewVariable(nil, offsets), nil
	}
	size, ok := rep.FixedSize()
	if !ok {
		return codec.ArrayBytes{}, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, rep.DataType)
	}
	buf := make([]byte, size)
	if len(rep.FillValue) > 0 {
		for off := 0; off+len(rep.FillValue) <= len(buf); off += len(rep.FillValue) {
			copy(buf[off:], rep.FillValue)
		}
	}
	return codec.NewFixed(buf), nil
}

func (s *Sharding) RecommendedConcurrency(rep codec.ChunkRepresentation) codec.ConcurrencyLimit {
	n, err := s.numInnerChunks(rep)
	if err != nil || n == 0 {
		return codec.Serial()
	}
	max := n
	if max > 1<<16 {
		max = 1 << 16
	}
	return codec.ConcurrencyLimit{Min: 1, Max: int(max)}
}

// PartialDecoderDecodesAll is false: shardPartialDecoder below reads the
// index once (small, fixed-size) and then only the inner chunks a request
// actually overlaps, never the whole shard.
func (s *Sharding) PartialDecoderDecodesAll() bool { return false }

func (s *Sharding) PartialDecoderShouldCacheInput() bool { return false }

// linearChunkIndex maps a chunk index to its row-major position in the
// grid, matching forEachInnerChunk's iteration order (and therefore the
// shard index's entry order).
func linearChunkIndex(grid subset.RegularGrid, idx subset.ChunkIndex) (uint64, error) {
	gridShape := grid.GridShape()
	strides := subset.Strides(gridShape)
	var linear uint64
	for i, v := range idx {
		linear += v * strides[i]
	}
	return linear, nil
}

// shardPartialDecoder serves array-subset requests directly from the shard
// index without decoding unrelated inner chunks (spec.md §4.4's headline
// partial-decode benefit). The index is fetched and parsed once.
type shardPartialDecoder struct {
	s     *Sharding
	rep   codec.ChunkRepresentation
	grid  subset.RegularGrid
	n     uint64
	opts  codec.Options
	inner codec.BytesPartialDecoder

	once    sync.Once
	entries []indexEntry
	bodyOff uint64 // absolute offset of the inner-chunk data section within the shard
	err     error
}

func (s *Sharding) PartialDecoder(inner codec.BytesPartialDecoder, decoded codec.ChunkRepresentation, opts codec.Options) (codec.ArrayPartialDecoder, error) {
	grid, err := s.innerGrid(decoded)
	if err != nil {
		return nil, err
	}
	n, err := s.numInnerChunks(decoded)
	if err != nil {
		return nil, err
	}
	return &shardPartialDecoder{s: s, rep: decoded, grid: grid, n: n, opts: opts, inner: inner}, nil
}

func (d *shardPartialDecoder) ensureIndex(ctx context.Context) ([]indexEntry, uint64, error) {
	d.once.Do(func() {
		size, err := d.inner.Size(ctx)
		if err != nil {
			d.err = err
			return
		}
		indexSize, err := d.s.indexEncodedSize(d.n)
		if err != nil {
			d.err = err
			return
		}
		if size < indexSize {
			d.err = fmt.Errorf("%w: shard too short for index of size %d", codec.ErrUnexpectedDecodedSize, indexSize)
			return
		}
		var indexRange store.Range
		if d.s.IndexLocation == IndexStart {
			indexRange = store.FromStart(0, &indexSize)
			d.bodyOff = indexSize
		} else {
			start := size - indexSize
			indexRange = store.FromStart(start, &indexSize)
			d.bodyOff = 0
		}
		chunks, err := d.inner.PartialDecode(ctx, []store.Range{indexRange})
		if err != nil {
			d.err = err
			return
		}
		entries, err := d.s.parseIndex(ctx, chunks[0], d.n, size-indexSize, d.opts)
		if err != nil {
			d.err = err
			return
		}
		d.entries = entries
	})
	return d.entries, d.bodyOff, d.err
}

func (d *shardPartialDecoder) PartialDecode(ctx context.Context, subsets []subset.Subset, opts codec.Options) ([]codec.ArrayBytes, error) {
	entries, bodyOff, err := d.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]codec.ArrayBytes, len(subsets))
	for si, want := range subsets {
		asm := newAssembler(d.rep.DataType, want.Shape)
		err := d.grid.ChunksInSubset(want, func(idx subset.ChunkIndex, arrayRel, chunkRel subset.Subset) error {
			linear, err := linearChunkIndex(d.grid, idx)
			if err != nil {
				return err
			}
			e := entries[linear]
			chunkShape, err := d.grid.ChunkShapeAt(idx)
			if err != nil {
				return err
			}
			innerRep := codec.ChunkRepresentation{Shape: chunkShape, DataType: d.rep.DataType, FillValue: d.rep.FillValue}

			var piece codec.ArrayBytes
			if e.offset == emptySentinel {
				whole, ferr := fillValuePiece(innerRep)
				if ferr != nil {
					return ferr
				}
				piece, err = partial.ExtractArraySubset(whole, subset.FromOrigin(chunkShape), chunkRel, innerRep)
				if err != nil {
					return err
				}
			} else {
				iv := partial.NewIntervalDecoder(d.inner, bodyOff+e.offset, e.length)
				decoder, derr := d.s.Codecs.PartialDecoder(ctx, iv, innerRep, opts)
				if derr != nil {
					return derr
				}
				pieces, derr := decoder.PartialDecode(ctx, []subset.Subset{chunkRel}, opts)
				if derr != nil {
					return derr
				}
				piece = pieces[0]
			}
			// arrayRel is in the shard's global coordinates; the assembler
			// for this request is local to want's own coordinate frame.
			return asm.place(want.Relative(arrayRel), piece)
		})
		if err != nil {
			return nil, err
		}
		out[si] = asm.finish()
	}
	return out, nil
}
