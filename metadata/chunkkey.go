package metadata

import (
	"strconv"
	"strings"
)

// ChunkKeyEncoding names a chunk's data key given its chunk index,
// generalizing the teacher's ChunkKey helper (which only produced the v2
// dotted form) to the V3 "default" slash form plus the v2 compatibility
// form (spec.md §6).
type ChunkKeyEncoding struct {
	Name      string // "default" or "v2"
	Separator string // "/" or "."
}

// DefaultChunkKeyEncoding is the V3 default: "c" prefix, "/" separator.
func DefaultChunkKeyEncoding() ChunkKeyEncoding {
	return ChunkKeyEncoding{Name: "default", Separator: "/"}
}

// V2ChunkKeyEncoding is the v2-compatible form: no "c" prefix, "." separator.
func V2ChunkKeyEncoding() ChunkKeyEncoding {
	return ChunkKeyEncoding{Name: "v2", Separator: "."}
}

// Key builds the chunk key suffix (everything after "{node_path}/") for the
// given chunk index.
func (e ChunkKeyEncoding) Key(idx []uint64) string {
	if len(idx) == 0 {
		if e.Name == "v2" {
			return "0"
		}
		return "c"
	}
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.FormatUint(v, 10)
	}
	joined := strings.Join(parts, e.Separator)
	if e.Name == "v2" {
		return joined
	}
	return "c" + e.Separator + joined
}
