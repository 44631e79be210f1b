package metadata

import (
	"encoding/json"
	"fmt"
)

// CodecMetadata is one entry of the "codecs" array: either a bare name
// string or {"name":..., "configuration": {...}}, plus the "must_understand"
// escape hatch (spec.md §6) that lets an unrecognised codec be skipped
// rather than rejected outright.
type CodecMetadata struct {
	Name            string          `json:"name"`
	Configuration   json.RawMessage `json:"configuration,omitempty"`
	MustUnderstand  *bool           `json:"must_understand,omitempty"`
}

// Understood reports whether a codec that fails to resolve against the
// plugin registry must be treated as an error (default: yes).
func (c CodecMetadata) Understood() bool {
	return c.MustUnderstand == nil || *c.MustUnderstand
}

// UnmarshalJSON accepts either a bare string ("gzip") or an object form.
func (c *CodecMetadata) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		c.Name = name
		c.Configuration = nil
		c.MustUnderstand = nil
		return nil
	}
	type alias CodecMetadata
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("metadata: invalid codec entry: %w", err)
	}
	*c = CodecMetadata(a)
	return nil
}

// MarshalJSON emits the object form when configuration or must_understand is
// present, and the bare-string form otherwise, matching how Zarr
// implementations serialize codecs with no configuration (e.g. "crc32c").
func (c CodecMetadata) MarshalJSON() ([]byte, error) {
	if len(c.Configuration) == 0 && c.MustUnderstand == nil {
		return json.Marshal(c.Name)
	}
	type alias CodecMetadata
	return json.Marshal(alias(c))
}

// DataTypeMetadata is either a bare string ("float32") or
// {"name":..., "configuration": {...}} for parameterised types such as
// fixed-width raw bytes.
type DataTypeMetadata struct {
	Name          string          `json:"name"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
}

func (d *DataTypeMetadata) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		d.Name = name
		return nil
	}
	type alias DataTypeMetadata
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("metadata: invalid data_type entry: %w", err)
	}
	*d = DataTypeMetadata(a)
	return nil
}

func (d DataTypeMetadata) MarshalJSON() ([]byte, error) {
	if len(d.Configuration) == 0 {
		return json.Marshal(d.Name)
	}
	type alias DataTypeMetadata
	return json.Marshal(alias(d))
}

// ChunkGridMetadata is the "chunk_grid" object: only "regular" is specified.
type ChunkGridMetadata struct {
	Name          string `json:"name"`
	Configuration struct {
		ChunkShape []uint64 `json:"chunk_shape"`
	} `json:"configuration"`
}

// ChunkKeyEncodingMetadata is the "chunk_key_encoding" object.
type ChunkKeyEncodingMetadata struct {
	Name          string `json:"name"`
	Configuration struct {
		Separator string `json:"separator,omitempty"`
	} `json:"configuration"`
}

// Encoding converts the JSON metadata form into the ChunkKeyEncoding used
// for key computation, defaulting the separator per §6.
func (c ChunkKeyEncodingMetadata) Encoding() (ChunkKeyEncoding, error) {
	sep := c.Configuration.Separator
	switch c.Name {
	case "default":
		if sep == "" {
			sep = "/"
		}
		return ChunkKeyEncoding{Name: "default", Separator: sep}, nil
	case "v2":
		if sep == "" {
			sep = "."
		}
		return ChunkKeyEncoding{Name: "v2", Separator: sep}, nil
	default:
		return ChunkKeyEncoding{}, fmt.Errorf("metadata: unsupported chunk_key_encoding %q", c.Name)
	}
}

// ArrayMetadata is the "zarr.json" document for node_type "array"
// (spec.md §6).
type ArrayMetadata struct {
	ZarrFormat         int                      `json:"zarr_format"`
	NodeType           string                   `json:"node_type"`
	Shape              []uint64                 `json:"shape"`
	DataType           DataTypeMetadata         `json:"data_type"`
	ChunkGrid          ChunkGridMetadata        `json:"chunk_grid"`
	ChunkKeyEncoding   ChunkKeyEncodingMetadata `json:"chunk_key_encoding"`
	FillValue          json.RawMessage          `json:"fill_value"`
	Codecs             []CodecMetadata          `json:"codecs"`
	Attributes         map[string]any           `json:"attributes,omitempty"`
	StorageTransformers []json.RawMessage       `json:"storage_transformers,omitempty"`
	DimensionNames     []*string                `json:"dimension_names,omitempty"`
}

// Parse decodes a zarr.json array document.
func Parse(r []byte) (*ArrayMetadata, error) {
	var m ArrayMetadata
	if err := json.Unmarshal(r, &m); err != nil {
		return nil, fmt.Errorf("metadata: invalid zarr.json: %w", err)
	}
	if m.ZarrFormat != 3 {
		return nil, fmt.Errorf("metadata: unsupported zarr_format %d, expected 3", m.ZarrFormat)
	}
	if m.NodeType != "array" {
		return nil, fmt.Errorf("metadata: expected node_type \"array\", got %q", m.NodeType)
	}
	if len(m.Shape) != len(m.ChunkGrid.Configuration.ChunkShape) {
		return nil, fmt.Errorf("metadata: shape rank %d does not match chunk_shape rank %d", len(m.Shape), len(m.ChunkGrid.Configuration.ChunkShape))
	}
	return &m, nil
}

// Marshal serializes the document back to JSON, pretty-printed.
func (m *ArrayMetadata) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// GroupMetadata is the minimal "zarr.json" document for node_type "group":
// attributes only. Group tree traversal is explicitly out of scope
// (spec.md §1); this struct exists only so a group's own attributes can be
// read/written, supplemented from the original Rust group_builder.rs.
type GroupMetadata struct {
	ZarrFormat int            `json:"zarr_format"`
	NodeType   string         `json:"node_type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ParseGroup decodes a zarr.json group document.
func ParseGroup(r []byte) (*GroupMetadata, error) {
	var m GroupMetadata
	if err := json.Unmarshal(r, &m); err != nil {
		return nil, fmt.Errorf("metadata: invalid zarr.json: %w", err)
	}
	if m.ZarrFormat != 3 {
		return nil, fmt.Errorf("metadata: unsupported zarr_format %d, expected 3", m.ZarrFormat)
	}
	if m.NodeType != "group" {
		return nil, fmt.Errorf("metadata: expected node_type \"group\", got %q", m.NodeType)
	}
	return &m, nil
}

// Marshal serializes the group document back to JSON, pretty-printed.
func (m *GroupMetadata) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
