package metadata

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FillValue is the decoded, typed fill-value payload for an array: the
// bytes a "missing" element is equivalent to (spec.md §3). For fixed types
// its length equals the data type's fixed size; for variable types it is a
// sentinel decided by the array-bytes container (empty payload).
type FillValue []byte

// ParseFillValue decodes the type-dependent JSON fill-value grammar from
// spec.md §6: JSON bool for bool, JSON integer for integers, JSON number or
// "Infinity"/"-Infinity"/"NaN"/"0x..." hex for floats, a 2-element array for
// complex, a byte array for raw/bytes, and a string for the string type.
// This is the supplemented float grammar from the original Rust
// implementation's v3/array.rs, which the distilled spec only gestures at.
func ParseFillValue(dt DataType, raw json.RawMessage) (FillValue, error) {
	switch dt {
	case Bool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("metadata: invalid bool fill_value: %w", err)
		}
		if b {
			return FillValue{1}, nil
		}
		return FillValue{0}, nil

	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("metadata: invalid integer fill_value: %w", err)
		}
		size, _ := dt.FixedSize()
		buf := make([]byte, size)
		switch size {
		case 1:
			buf[0] = byte(n)
		case 2:
			binary.LittleEndian.PutUint16(buf, uint16(n))
		case 4:
			binary.LittleEndian.PutUint32(buf, uint32(n))
		case 8:
			binary.LittleEndian.PutUint64(buf, uint64(n))
		}
		return buf, nil

	case Float32:
		bits, err := parseFloatFillBits(raw, 32)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(bits))
		return buf, nil

	case Float64:
		bits, err := parseFloatFillBits(raw, 64)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, bits)
		return buf, nil

	case Complex64, Complex128:
		var parts [2]json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, fmt.Errorf("metadata: invalid complex fill_value: %w", err)
		}
		width := 32
		if dt == Complex128 {
			width = 64
		}
		re, err := parseFloatFillBits(parts[0], width)
		if err != nil {
			return nil, err
		}
		im, err := parseFloatFillBits(parts[1], width)
		if err != nil {
			return nil, err
		}
		size := width / 8
		buf := make([]byte, 2*size)
		if size == 4 {
			binary.LittleEndian.PutUint32(buf[0:4], uint32(re))
			binary.LittleEndian.PutUint32(buf[4:8], uint32(im))
		} else {
			binary.LittleEndian.PutUint64(buf[0:8], re)
			binary.LittleEndian.PutUint64(buf[8:16], im)
		}
		return buf, nil

	case RawBytes, Bytes:
		var bytes []byte
		if err := json.Unmarshal(raw, &bytes); err != nil {
			return nil, fmt.Errorf("metadata: invalid raw fill_value: %w", err)
		}
		return bytes, nil

	case String:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("metadata: invalid string fill_value: %w", err)
		}
		return []byte(s), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataType, dt)
	}
}

// parseFloatFillBits accepts a JSON number, "Infinity"/"-Infinity"/"NaN", or
// a "0x..." raw-bits hex string and returns the IEEE-754 bit pattern for a
// width-bit float (32 or 64).
func parseFloatFillBits(raw json.RawMessage, width int) (uint64, error) {
	trimmed := strings.TrimSpace(string(raw))

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "Infinity":
			return floatBits(math.Inf(1), width), nil
		case "-Infinity":
			return floatBits(math.Inf(-1), width), nil
		case "NaN":
			return floatBits(math.NaN(), width), nil
		}
		if strings.HasPrefix(asString, "0x") || strings.HasPrefix(asString, "0X") {
			bits, err := strconv.ParseUint(asString[2:], 16, width)
			if err != nil {
				return 0, fmt.Errorf("metadata: invalid hex float fill_value %q: %w", asString, err)
			}
			return bits, nil
		}
		return 0, fmt.Errorf("metadata: unrecognised float fill_value string %q", asString)
	}

	var f float64
	if err := json.Unmarshal([]byte(trimmed), &f); err != nil {
		return 0, fmt.Errorf("metadata: invalid float fill_value: %w", err)
	}
	return floatBits(f, width), nil
}

func floatBits(f float64, width int) uint64 {
	if width == 32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

// Equal reports whether b (an encoded element buffer, repeated or raw) is
// semantically identical to the fill value's byte pattern, i.e. whether b
// is fv repeated len(b)/len(fv) times. This underlies "writing a chunk
// whose contents equal the fill value erases the chunk" (spec.md §3).
func (fv FillValue) Equal(b []byte) bool {
	if len(fv) == 0 {
		return len(b) == 0
	}
	if len(b)%len(fv) != 0 {
		return false
	}
	for off := 0; off < len(b); off += len(fv) {
		for i := range fv {
			if b[off+i] != fv[i] {
				return false
			}
		}
	}
	return true
}

// Repeat builds a buffer of n elements, each a copy of fv.
func (fv FillValue) Repeat(n uint64) []byte {
	out := make([]byte, uint64(len(fv))*n)
	for i := uint64(0); i < n; i++ {
		copy(out[i*uint64(len(fv)):], fv)
	}
	return out
}
