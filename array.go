// Package zarr implements the array I/O engine (spec.md §4.5): chunk
// read/write/erase, read-modify-write partial chunk writes serialised by a
// per-chunk mutex, and parallel array-subset read/write built on the
// codec/chain, subset, and store packages. It generalizes the teacher's
// Reader (metadata load + single-chunk decode) into a read/write engine
// covering the full V3 codec pipeline.
package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/chain"
	"github.com/TuSKan/go-zarr/codec/partial"
	"github.com/TuSKan/go-zarr/internal/concurrent"
	"github.com/TuSKan/go-zarr/internal/keymutex"
	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/store"
	"github.com/TuSKan/go-zarr/subset"
)

// Array is a zarr.json-described array backed by a Store: component H
// (chunk read/write/erase) and component J (array subset read/write) from
// spec.md §4.5.
type Array struct {
	store    store.Store
	nodePath string
	meta     *metadata.ArrayMetadata
	dataType metadata.DataType
	fillVal  metadata.FillValue
	grid     subset.RegularGrid
	keyEnc   metadata.ChunkKeyEncoding
	chain    *chain.Chain

	mutexes *keymutex.KeyMutex
}

// metadataKey returns the zarr.json key for a node path.
func metadataKey(nodePath string) string {
	if nodePath == "" {
		return "zarr.json"
	}
	return nodePath + "/zarr.json"
}

// CreateArray writes metadata's JSON document to the store at nodePath and
// returns the resulting Array handle (spec.md §3 "an array is created by
// writing its metadata to the store").
func CreateArray(ctx context.Context, s store.Store, nodePath string, meta *metadata.ArrayMetadata) (*Array, error) {
	meta.ZarrFormat = 3
	meta.NodeType = "array"
	doc, err := meta.Marshal()
	if err != nil {
		return nil, fmt.Errorf("zarr: marshal metadata for %q: %w", nodePath, err)
	}
	key := metadataKey(nodePath)
	if err := s.Set(ctx, key, doc); err != nil {
		return nil, codec.NewStorageError("set", key, err)
	}
	return newArray(s, nodePath, meta)
}

// OpenArray loads an existing array's zarr.json from the store.
func OpenArray(ctx context.Context, s store.Store, nodePath string) (*Array, error) {
	key := metadataKey(nodePath)
	doc, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("zarr: no array at %q: %w", nodePath, err)
		}
		return nil, codec.NewStorageError("get", key, err)
	}
	meta, err := metadata.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("zarr: %q: %w", nodePath, err)
	}
	return newArray(s, nodePath, meta)
}

func newArray(s store.Store, nodePath string, meta *metadata.ArrayMetadata) (*Array, error) {
	dt := metadata.DataType(meta.DataType.Name)
	fv, err := metadata.ParseFillValue(dt, meta.FillValue)
	if err != nil {
		return nil, fmt.Errorf("zarr: %q: fill_value: %w", nodePath, err)
	}
	grid, err := subset.NewRegularGrid(meta.Shape, meta.ChunkGrid.Configuration.ChunkShape)
	if err != nil {
		return nil, fmt.Errorf("zarr: %q: %w", nodePath, err)
	}
	keyEnc, err := meta.ChunkKeyEncoding.Encoding()
	if err != nil {
		return nil, fmt.Errorf("zarr: %q: %w", nodePath, err)
	}
	c, err := buildChain(dt, meta.Codecs)
	if err != nil {
		return nil, fmt.Errorf("zarr: %q: %w", nodePath, err)
	}
	return &Array{
		store:    s,
		nodePath: nodePath,
		meta:     meta,
		dataType: dt,
		fillVal:  fv,
		grid:     grid,
		keyEnc:   keyEnc,
		chain:    c,
		mutexes:  keymutex.New(0),
	}, nil
}

// Shape returns the array's nominal shape.
func (a *Array) Shape() []uint64 { return a.meta.Shape }

// DataType returns the array's data type.
func (a *Array) DataType() metadata.DataType { return a.dataType }

func (a *Array) chunkKey(idx subset.ChunkIndex) string {
	suffix := a.keyEnc.Key(idx)
	if a.nodePath == "" {
		return suffix
	}
	return a.nodePath + "/" + suffix
}

func (a *Array) chunkRepresentation(idx subset.ChunkIndex) (codec.ChunkRepresentation, error) {
	shape, err := a.grid.ChunkShapeAt(idx)
	if err != nil {
		return codec.ChunkRepresentation{}, fmt.Errorf("%w: %v", codec.ErrInvalidChunkIndices, err)
	}
	return codec.ChunkRepresentation{Shape: shape, DataType: a.dataType, FillValue: a.fillVal}, nil
}

// fillArrayBytes synthesises a whole-chunk buffer equal to rep's fill value
// repeated to fill rep's shape (spec.md §3, §4.5 "missing chunks read as
// fill-value").
func fillArrayBytes(rep codec.ChunkRepresentation) codec.ArrayBytes {
	n := rep.NumElements()
	if !rep.DataType.IsVariableLength() {
		return codec.NewFixed(rep.FillValue.Repeat(n))
	}
	elemLen := uint64(len(rep.FillValue))
	payload := rep.FillValue.Repeat(n)
	offsets := make([]uint64, n+1)
	for i := uint64(0); i <= n; i++ {
		offsets[i] = i * elemLen
	}
	return codec.NewVariable(payload, offsets)
}

// isFillValue reports whether data is entirely equal to rep's fill value,
// element-wise (spec.md §3 "writing a chunk whose contents equal the fill
// value erases the chunk").
func isFillValue(data codec.ArrayBytes, rep codec.ChunkRepresentation) bool {
	if data.Kind == codec.FixedLengthBytes {
		return rep.FillValue.Equal(data.Fixed)
	}
	n := rep.NumElements()
	if uint64(len(data.Offsets)) != n+1 {
		return false
	}
	for i := uint64(0); i < n; i++ {
		el, err := data.Element(i)
		if err != nil || !bytes.Equal(el, rep.FillValue) {
			return false
		}
	}
	return true
}

// ReadChunk decodes the chunk at idx, synthesising fill-value bytes if the
// chunk has never been written (spec.md §4.5 "chunk read").
func (a *Array) ReadChunk(ctx context.Context, idx subset.ChunkIndex, opts codec.Options) (codec.ArrayBytes, error) {
	rep, err := a.chunkRepresentation(idx)
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	key := a.chunkKey(idx)
	encoded, err := a.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return fillArrayBytes(rep), nil
	}
	if err != nil {
		return codec.ArrayBytes{}, codec.NewStorageError("get", key, err)
	}
	return a.chain.Decode(ctx, encoded, rep, opts)
}

// WriteChunk encodes data and writes it at idx, or erases the chunk key if
// data is entirely the fill value (spec.md §4.5 "chunk write").
func (a *Array) WriteChunk(ctx context.Context, idx subset.ChunkIndex, data codec.ArrayBytes, opts codec.Options) error {
	rep, err := a.chunkRepresentation(idx)
	if err != nil {
		return err
	}
	if err := data.Validate(rep); err != nil {
		return err
	}
	key := a.chunkKey(idx)
	if isFillValue(data, rep) {
		if _, err := a.store.Erase(ctx, key); err != nil {
			return codec.NewStorageError("erase", key, err)
		}
		return nil
	}
	encoded, err := a.chain.Encode(ctx, data, rep, opts)
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, key, encoded); err != nil {
		return codec.NewStorageError("set", key, err)
	}
	return nil
}

// EraseChunk removes the chunk at idx, equivalent to writing fill-value
// bytes, returning whether a chunk previously existed there.
func (a *Array) EraseChunk(ctx context.Context, idx subset.ChunkIndex) (bool, error) {
	key := a.chunkKey(idx)
	erased, err := a.store.Erase(ctx, key)
	if err != nil {
		return false, codec.NewStorageError("erase", key, err)
	}
	return erased, nil
}

// WriteChunkSubset overwrites chunkRel (a chunk-relative Subset) of the
// chunk at idx with data, serialising the read-decode-modify-encode-write
// window with a per-chunk mutex (spec.md §4.5 "chunk partial write", §5
// ordering guarantees). The whole-chunk-at-origin case is delegated to
// WriteChunk directly, skipping the mutex and the read.
func (a *Array) WriteChunkSubset(ctx context.Context, idx subset.ChunkIndex, chunkRel subset.Subset, data codec.ArrayBytes, opts codec.Options) error {
	rep, err := a.chunkRepresentation(idx)
	if err != nil {
		return err
	}
	if chunkRel.IsOrigin() && subsetCoversShape(chunkRel, rep.Shape) {
		return a.WriteChunk(ctx, idx, data, opts)
	}

	key := a.chunkKey(idx)
	a.mutexes.Lock(key)
	defer a.mutexes.Unlock(key)

	current, err := a.ReadChunk(ctx, idx, opts)
	if err != nil {
		return err
	}
	patched, err := patchArrayBytes(a.dataType, rep.Shape, current, chunkRel, data)
	if err != nil {
		return err
	}
	return a.WriteChunk(ctx, idx, patched, opts)
}

func subsetCoversShape(s subset.Subset, shape []uint64) bool {
	if len(s.Shape) != len(shape) {
		return false
	}
	for i, d := range shape {
		if s.Shape[i] != d {
			return false
		}
	}
	return true
}

// patchArrayBytes returns a copy of base (shape bufShape) with the region
// pos overwritten by piece, reusing the same buffer-with-slots technique
// codec/arraytobytes's assembler uses to gather pieces, seeded from base's
// existing elements instead of starting empty.
func patchArrayBytes(dt metadata.DataType, bufShape []uint64, base codec.ArrayBytes, pos subset.Subset, piece codec.ArrayBytes) (codec.ArrayBytes, error) {
	if !dt.IsVariableLength() {
		elemSize, _ := dt.FixedSize()
		out := make([]byte, len(base.Fixed))
		copy(out, base.Fixed)
		var cursor uint64
		subset.ContiguousRuns(bufShape, pos.Start, pos.Shape, func(r subset.Run) {
			n := r.Count * uint64(elemSize)
			dstOff := r.Index * uint64(elemSize)
			copy(out[dstOff:dstOff+n], piece.Fixed[cursor:cursor+n])
			cursor += n
		})
		return codec.NewFixed(out), nil
	}

	total := uint64(1)
	for _, d := range bufShape {
		total *= d
	}
	slots := make([][]byte, total)
	for i := uint64(0); i < total; i++ {
		el, err := base.Element(i)
		if err != nil {
			return codec.ArrayBytes{}, err
		}
		slots[i] = el
	}
	var cursor uint64
	var elemErr error
	subset.ContiguousRuns(bufShape, pos.Start, pos.Shape, func(r subset.Run) {
		for j := uint64(0); j < r.Count; j++ {
			el, err := piece.Element(cursor)
			if err != nil {
				elemErr = err
				return
			}
			slots[r.Index+j] = el
			cursor++
		}
	})
	if elemErr != nil {
		return codec.ArrayBytes{}, elemErr
	}
	offsets := make([]uint64, total+1)
	var payload []byte
	for i, el := range slots {
		payload = append(payload, el...)
		offsets[i+1] = uint64(len(payload))
	}
	return codec.NewVariable(payload, offsets), nil
}

// arrayBytesBuilder gathers pieces decoded from separate, non-overlapping
// chunks into one fresh output ArrayBytes of shape bufShape, mirroring
// codec/arraytobytes's unexported assembler (its pieces partition a shard's
// output the same way these pieces partition a requested subset's output).
type arrayBytesBuilder struct {
	dataType  metadata.DataType
	bufShape  []uint64
	elemSize  int
	fixed     []byte
	elemSlots [][]byte
}

func (b *arrayBytesBuilder) init(dt metadata.DataType, bufShape []uint64) {
	b.dataType = dt
	b.bufShape = bufShape
	n := uint64(1)
	for _, d := range bufShape {
		n *= d
	}
	if dt.IsVariableLength() {
		b.elemSlots = make([][]byte, n)
	} else {
		b.elemSize, _ = dt.FixedSize()
		b.fixed = make([]byte, n*uint64(b.elemSize))
	}
}

func (b *arrayBytesBuilder) place(pos subset.Subset, piece codec.ArrayBytes) error {
	if b.dataType.IsVariableLength() {
		var cursor uint64
		var placeErr error
		subset.ContiguousRuns(b.bufShape, pos.Start, pos.Shape, func(r subset.Run) {
			if placeErr != nil {
				return
			}
			for j := uint64(0); j < r.Count; j++ {
				eb, err := piece.Element(cursor)
				if err != nil {
					placeErr = err
					return
				}
				b.elemSlots[r.Index+j] = eb
				cursor++
			}
		})
		return placeErr
	}
	var cursor uint64
	subset.ContiguousRuns(b.bufShape, pos.Start, pos.Shape, func(r subset.Run) {
		n := r.Count * uint64(b.elemSize)
		dstOff := r.Index * uint64(b.elemSize)
		copy(b.fixed[dstOff:dstOff+n], piece.Fixed[cursor:cursor+n])
		cursor += n
	})
	return nil
}

func (b *arrayBytesBuilder) finish() codec.ArrayBytes {
	if !b.dataType.IsVariableLength() {
		return codec.NewFixed(b.fixed)
	}
	offsets := make([]uint64, len(b.elemSlots)+1)
	var payload []byte
	for i, eb := range b.elemSlots {
		payload = append(payload, eb...)
		offsets[i+1] = uint64(len(payload))
	}
	return codec.NewVariable(payload, offsets)
}

// chunkOverlap is one (chunk index, array-relative, chunk-relative) triple
// produced by decomposing a requested region against the chunk grid.
type chunkOverlap struct {
	idx                subset.ChunkIndex
	arrayRel, chunkRel subset.Subset
}

func (a *Array) overlaps(region subset.Subset) ([]chunkOverlap, error) {
	var out []chunkOverlap
	err := a.grid.ChunksInSubset(region, func(idx subset.ChunkIndex, arrayRel, chunkRel subset.Subset) error {
		out = append(out, chunkOverlap{idx: idx.Clone(), arrayRel: arrayRel, chunkRel: chunkRel})
		return nil
	})
	return out, err
}

// emptyArrayBytes returns the zero-element ArrayBytes for dt.
func emptyArrayBytes(dt metadata.DataType) codec.ArrayBytes {
	if dt.IsVariableLength() {
		return codec.NewVariable(nil, []uint64{0})
	}
	return codec.NewFixed(nil)
}

// ReadSubset decodes region (an array-relative Subset) across however many
// chunks it overlaps, using the single-chunk fast path when possible and
// parallel per-chunk partial decode otherwise (spec.md §4.5 "array subset
// read").
func (a *Array) ReadSubset(ctx context.Context, region subset.Subset, opts codec.Options) (codec.ArrayBytes, error) {
	if region.Empty() {
		return emptyArrayBytes(a.dataType), nil
	}
	ov, err := a.overlaps(region)
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	if len(ov) == 0 {
		return emptyArrayBytes(a.dataType), nil
	}
	if len(ov) == 1 {
		full, err := a.grid.SubsetOf(ov[0].idx)
		if err != nil {
			return codec.ArrayBytes{}, err
		}
		if full.Equal(region) {
			return a.ReadChunk(ctx, ov[0].idx, opts)
		}
	}

	outer, inner := concurrent.Split(opts.ConcurrencyTargetOrDefault(), len(ov))
	pieces, err := concurrent.Gather(ctx, outer, len(ov), func(ctx context.Context, i int) (codec.ArrayBytes, error) {
		return a.readChunkRegion(ctx, ov[i].idx, ov[i].chunkRel, codec.Options{ConcurrencyTarget: inner})
	})
	if err != nil {
		return codec.ArrayBytes{}, err
	}

	var asm arrayBytesBuilder
	asm.init(a.dataType, region.Shape)
	for i, o := range ov {
		if err := asm.place(region.Relative(o.arrayRel), pieces[i]); err != nil {
			return codec.ArrayBytes{}, err
		}
	}
	return asm.finish(), nil
}

// readChunkRegion decodes only chunkRel of the chunk at idx, via the
// chain's partial decoder over a storage-backed byte source, synthesising
// fill-value bytes directly when the chunk key does not exist (avoiding a
// doomed partial-decode round trip against a missing key).
func (a *Array) readChunkRegion(ctx context.Context, idx subset.ChunkIndex, chunkRel subset.Subset, opts codec.Options) (codec.ArrayBytes, error) {
	rep, err := a.chunkRepresentation(idx)
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	key := a.chunkKey(idx)
	if _, err := a.store.Size(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			whole := rep.AsSubset()
			return partial.ExtractArraySubset(fillArrayBytes(rep), whole, chunkRel, rep)
		}
		return codec.ArrayBytes{}, codec.NewStorageError("stat", key, err)
	}

	dec, err := a.chain.PartialDecoder(ctx, partial.NewStorageDecoder(a.store, key), rep, opts)
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	out, err := dec.PartialDecode(ctx, []subset.Subset{chunkRel}, opts)
	if err != nil {
		return codec.ArrayBytes{}, err
	}
	return out[0], nil
}

// WriteSubset writes data (covering region, an array-relative Subset) across
// however many chunks it overlaps, extracting each chunk's slice of data and
// delegating to WriteChunkSubset (spec.md §4.5 "array subset write").
func (a *Array) WriteSubset(ctx context.Context, region subset.Subset, data codec.ArrayBytes, opts codec.Options) error {
	if region.Empty() {
		return nil
	}
	ov, err := a.overlaps(region)
	if err != nil {
		return err
	}
	outer, inner := concurrent.Split(opts.ConcurrencyTargetOrDefault(), len(ov))
	return concurrent.ForEach(ctx, outer, len(ov), func(ctx context.Context, i int) error {
		o := ov[i]
		piece, err := extractRegion(a.dataType, region, data, region.Relative(o.arrayRel))
		if err != nil {
			return err
		}
		return a.WriteChunkSubset(ctx, o.idx, o.chunkRel, piece, codec.Options{ConcurrencyTarget: inner})
	})
}

// extractRegion extracts sub (expressed in whole's coordinate system) from
// data, whose coverage is whole.
func extractRegion(dt metadata.DataType, whole subset.Subset, data codec.ArrayBytes, sub subset.Subset) (codec.ArrayBytes, error) {
	rep := codec.ChunkRepresentation{Shape: whole.Shape, DataType: dt}
	return partial.ExtractArraySubset(data, subset.FromOrigin(whole.Shape), sub, rep)
}
