package arraytobytes

import (
	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/metadata"
	"github.com/TuSKan/go-zarr/subset"
)

// assembler collects pieces decoded from separate inner chunks into one
// output ArrayBytes of shape bufShape. Every piece placed must be congruent
// (same Shape) to the buffer-local Subset it is placed at; place() may be
// called any number of times in any order, since the shard's inner chunks
// partition the output region exactly.
type assembler struct {
	dataType  metadata.DataType
	variable  bool
	bufShape  []uint64
	elemSize  int
	fixed     []byte
	elemSlots [][]byte
}

func newAssembler(dataType metadata.DataType, bufShape []uint64) *assembler {
	a := &assembler{dataType: dataType, bufShape: bufShape, variable: dataType.IsVariableLength()}
	n := uint64(1)
	for _, d := range bufShape {
		n *= d
	}
	if a.variable {
		a.elemSlots = make([][]byte, n)
	} else {
		elemSize, _ := dataType.FixedSize()
		a.elemSize = elemSize
		a.fixed = make([]byte, n*uint64(elemSize))
	}
	return a
}

// place copies piece into the buffer at pos, a Subset expressed in the
// buffer's own coordinate system (pos.Shape must equal piece's shape).
func (a *assembler) place(pos subset.Subset, piece codec.ArrayBytes) error {
	if a.variable {
		cursor := uint64(0)
		var placeErr error
		subset.ContiguousRuns(a.bufShape, pos.Start, pos.Shape, func(r subset.Run) {
			if placeErr != nil {
				return
			}
			for j := uint64(0); j < r.Count; j++ {
				eb, err := piece.Element(cursor)
				if err != nil {
					placeErr = err
					return
				}
				a.elemSlots[r.Index+j] = eb
				cursor++
			}
		})
		return placeErr
	}
	cursor := uint64(0)
	subset.ContiguousRuns(a.bufShape, pos.Start, pos.Shape, func(r subset.Run) {
		n := r.Count * uint64(a.elemSize)
		dstOff := r.Index * uint64(a.elemSize)
		copy(a.fixed[dstOff:dstOff+n], piece.Fixed[cursor:cursor+n])
		cursor += n
	})
	return nil
}

func (a *assembler) finish() codec.ArrayBytes {
	if !a.variable {
		return codec.NewFixed(a.fixed)
	}
	offsets := make([]uint64, len(a.elemSlots)+1)
	var payload []byte
	for i, eb := range a.elemSlots {
		payload = append(payload, eb...)
		offsets[i+1] = uint64(len(payload))
	}
	return codec.NewVariable(payload, offsets)
}
