// Package metadata parses and represents Zarr V3 array/codec metadata: the
// data-type registry, fill values, chunk-key encodings, and the zarr.json
// document itself. It generalizes the teacher's numpy-dtype-string parser
// (`ParseDType` in metadata.go) to the V3 named data types, and its
// zarr_format/shape/chunks JSON struct to the full V3 array descriptor.
package metadata

import "fmt"

// DataType identifies a Zarr core data type.
type DataType string

const (
	Bool       DataType = "bool"
	Int8       DataType = "int8"
	Int16      DataType = "int16"
	Int32      DataType = "int32"
	Int64      DataType = "int64"
	Uint8      DataType = "uint8"
	Uint16     DataType = "uint16"
	Uint32     DataType = "uint32"
	Uint64     DataType = "uint64"
	Float32    DataType = "float32"
	Float64    DataType = "float64"
	Complex64  DataType = "complex64"
	Complex128 DataType = "complex128"
	RawBytes   DataType = "raw" // fixed-size opaque bytes, configuration gives size
	String     DataType = "string"
	Bytes      DataType = "bytes" // variable-length binary
)

// FixedSize returns the per-element size in bytes for fixed-length data
// types, and ok=false for the variable-length types (string, bytes).
func (d DataType) FixedSize() (size int, ok bool) {
	switch d {
	case Bool, Int8, Uint8:
		return 1, true
	case Int16, Uint16:
		return 2, true
	case Int32, Uint32, Float32:
		return 4, true
	case Int64, Uint64, Float64, Complex64:
		return 8, true
	case Complex128:
		return 16, true
	default:
		return 0, false
	}
}

// IsVariableLength reports whether values of this type are variable-length
// (string, bytes) and therefore require the ArrayBytes variable-length
// representation rather than a flat fixed-stride buffer.
func (d DataType) IsVariableLength() bool {
	_, ok := d.FixedSize()
	return !ok
}

// IsFloat reports whether the type is a floating-point type, relevant to
// the bit-round codec which rejects non-float types.
func (d DataType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// ErrUnsupportedDataType is the sentinel wrapped by codecs that reject a
// data type they cannot process (spec.md §7 UnsupportedDataType).
var ErrUnsupportedDataType = fmt.Errorf("metadata: unsupported data type")
