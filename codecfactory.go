package zarr

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/TuSKan/go-zarr/codec"
	"github.com/TuSKan/go-zarr/codec/arraytoarray"
	"github.com/TuSKan/go-zarr/codec/arraytobytes"
	"github.com/TuSKan/go-zarr/codec/bytestobytes"
	"github.com/TuSKan/go-zarr/codec/chain"
	"github.com/TuSKan/go-zarr/metadata"
)

// buildChain turns an array's zarr.json "codecs" entries into a concrete
// codec/chain.Chain, the same dispatch-by-name-with-default-error idiom the
// teacher's reader.go uses to pick a decompressor off r.meta.Compressor.ID.
// Unrecognised codecs are skipped when "must_understand": false (spec.md
// §6), otherwise rejected.
func buildChain(dt metadata.DataType, entries []metadata.CodecMetadata) (*chain.Chain, error) {
	var a2a []codec.ArrayToArrayCodec
	var a2b codec.ArrayToBytesCodec
	var b2b []codec.BytesToBytesCodec

	for _, c := range entries {
		switch c.Name {
		case "transpose":
			var cfg struct {
				Order []int `json:"order"`
			}
			if err := unmarshalConfig(c, &cfg); err != nil {
				return nil, err
			}
			t, err := arraytoarray.NewTranspose(cfg.Order)
			if err != nil {
				return nil, fmt.Errorf("codecs: transpose: %w", err)
			}
			a2a = append(a2a, t)

		case "bitround":
			var cfg struct {
				KeepBits int `json:"keepbits"`
			}
			if err := unmarshalConfig(c, &cfg); err != nil {
				return nil, err
			}
			br, err := arraytoarray.NewBitRound(cfg.KeepBits)
			if err != nil {
				return nil, fmt.Errorf("codecs: bitround: %w", err)
			}
			a2a = append(a2a, br)

		case "bytes", "endian":
			var cfg struct {
				Endian string `json:"endian"`
			}
			if err := unmarshalConfig(c, &cfg); err != nil {
				return nil, err
			}
			order := arraytobytes.LittleEndian
			if cfg.Endian == "big" {
				order = arraytobytes.BigEndian
			}
			if a2b != nil {
				return nil, fmt.Errorf("codecs: more than one array-to-bytes codec in chain")
			}
			a2b = arraytobytes.NewBytes(order)

		case "vlen-utf8", "vlen-bytes":
			layout := arraytobytes.InterleavedLayout
			if a2b != nil {
				return nil, fmt.Errorf("codecs: more than one array-to-bytes codec in chain")
			}
			a2b = arraytobytes.NewVlen(layout)

		case "sharding_indexed":
			shard, err := buildSharding(dt, c)
			if err != nil {
				return nil, err
			}
			if a2b != nil {
				return nil, fmt.Errorf("codecs: more than one array-to-bytes codec in chain")
			}
			a2b = shard

		default:
			b, err := buildBytesToBytes(c)
			if err != nil {
				return nil, err
			}
			if b == nil {
				continue // unrecognised, must_understand: false
			}
			b2b = append(b2b, b)
		}
	}

	if a2b == nil {
		a2b = arraytobytes.NewBytes(arraytobytes.LittleEndian)
	}
	return chain.New(a2a, a2b, b2b)
}

// buildBytesToBytes resolves a single bytes→bytes codec entry, used both for
// the main chain's compressor stages and for a sharding codec's independent
// index_codecs chain (spec.md §4.4: the index has no array representation
// of its own, so it only ever goes through bytes→bytes codecs). Returns
// nil, nil for an unrecognised codec marked "must_understand": false.
func buildBytesToBytes(c metadata.CodecMetadata) (codec.BytesToBytesCodec, error) {
	switch c.Name {
	case "gzip":
		var cfg struct {
			Level int `json:"level"`
		}
		if err := unmarshalConfig(c, &cfg); err != nil {
			return nil, err
		}
		return bytestobytes.NewGzip(cfg.Level), nil

	case "zstd":
		var cfg struct {
			Level int `json:"level"`
		}
		if err := unmarshalConfig(c, &cfg); err != nil {
			return nil, err
		}
		return bytestobytes.NewZstd(zstd.EncoderLevel(cfg.Level)), nil

	case "blosc":
		var cfg struct {
			ElementSize int    `json:"typesize"`
			Level       int    `json:"clevel"`
			Compressor  string `json:"cname"`
		}
		if err := unmarshalConfig(c, &cfg); err != nil {
			return nil, err
		}
		return bytestobytes.NewBlosc(cfg.ElementSize, cfg.Level, cfg.Compressor), nil

	case "bz2":
		var cfg struct {
			Level int `json:"level"`
		}
		if err := unmarshalConfig(c, &cfg); err != nil {
			return nil, err
		}
		return bytestobytes.NewBz2(cfg.Level), nil

	case "lz4":
		return bytestobytes.NewLz4(), nil

	case "crc32c":
		return bytestobytes.NewCrc32c(), nil

	case "fletcher32":
		return bytestobytes.NewFletcher32(), nil

	case "shuffle":
		var cfg struct {
			ElementSize int `json:"elementsize"`
		}
		if err := unmarshalConfig(c, &cfg); err != nil {
			return nil, err
		}
		s, err := bytestobytes.NewShuffle(cfg.ElementSize)
		if err != nil {
			return nil, fmt.Errorf("codecs: shuffle: %w", err)
		}
		return s, nil

	default:
		if !c.Understood() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", codec.ErrUnsupportedDataType, c.Name)
	}
}

// buildSharding parses a sharding_indexed codec's configuration: its own
// inner chunk_shape, nested codecs chain, and index_codecs chain (spec.md
// §4.4, §6).
func buildSharding(dt metadata.DataType, c metadata.CodecMetadata) (*arraytobytes.Sharding, error) {
	var cfg struct {
		ChunkShape    []uint64                `json:"chunk_shape"`
		Codecs        []metadata.CodecMetadata `json:"codecs"`
		IndexCodecs   []metadata.CodecMetadata `json:"index_codecs"`
		IndexLocation string                  `json:"index_location"`
	}
	if err := unmarshalConfig(c, &cfg); err != nil {
		return nil, err
	}

	inner, err := buildChain(dt, cfg.Codecs)
	if err != nil {
		return nil, fmt.Errorf("codecs: sharding_indexed: inner codecs: %w", err)
	}

	var indexCodecs []codec.BytesToBytesCodec
	for _, ic := range cfg.IndexCodecs {
		if ic.Name == "bytes" || ic.Name == "endian" {
			// The sharding codec always lays the index out as little-endian
			// u64 pairs, so a little-endian bytes entry adds nothing here.
			var ecfg struct {
				Endian string `json:"endian"`
			}
			if err := unmarshalConfig(ic, &ecfg); err != nil {
				return nil, err
			}
			if ecfg.Endian == "big" {
				return nil, fmt.Errorf("codecs: sharding_indexed: index_codecs: big-endian index is not supported")
			}
			continue
		}
		b, err := buildBytesToBytes(ic)
		if err != nil {
			return nil, fmt.Errorf("codecs: sharding_indexed: index_codecs: %w", err)
		}
		if b == nil {
			continue
		}
		indexCodecs = append(indexCodecs, b)
	}

	loc := arraytobytes.IndexEnd
	if cfg.IndexLocation == "start" {
		loc = arraytobytes.IndexStart
	}

	return arraytobytes.NewSharding(cfg.ChunkShape, inner, indexCodecs, loc)
}

func unmarshalConfig(c metadata.CodecMetadata, out any) error {
	if len(c.Configuration) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Configuration, out); err != nil {
		return fmt.Errorf("codecs: %s: invalid configuration: %w", c.Name, err)
	}
	return nil
}
