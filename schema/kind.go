package schema

import (
	"fmt"
	"math"
)

// Kind identifies how a field is laid out in a row.
type Kind uint8

const (
	Invalid Kind = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	// Array is a fixed number of elements of one primitive kind.
	Array
	// String is a capped-length byte string stored as a length prefix
	// followed by a buffer of its declared maximum length.
	String
)

// StringPrefixSize is the width of the length prefix in front of every
// capped string.
const StringPrefixSize = 2

// MaxStringLen is the largest max_len a string field may declare.
const MaxStringLen = math.MaxUint16

var kindNames = [...]string{
	Invalid: "invalid",
	Bool:    "bool",
	Int8:    "i8",
	Int16:   "i16",
	Int32:   "i32",
	Int64:   "i64",
	Uint8:   "u8",
	Uint16:  "u16",
	Uint32:  "u32",
	Uint64:  "u64",
	Float32: "f32",
	Float64: "f64",
	Array:   "array",
	String:  "string",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a kind name such as "u32" or "string" to its Kind.
// Long forms like "uint32" and "float64" are accepted too.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if k != int(Invalid) && name == s {
			return Kind(k), nil
		}
	}
	switch s {
	case "int8":
		return Int8, nil
	case "int16":
		return Int16, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "uint8", "byte":
		return Uint8, nil
	case "uint16":
		return Uint16, nil
	case "uint32":
		return Uint32, nil
	case "uint64":
		return Uint64, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	}
	return Invalid, fmt.Errorf("%w: unknown kind %q", ErrSchema, s)
}

// Primitive reports whether k is a fixed-width scalar.
func (k Kind) Primitive() bool {
	return k >= Bool && k <= Float64
}

// Size returns the width in bytes of a primitive kind, or 0.
func (k Kind) Size() int {
	switch k {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether k is a signed integer kind.
func (k Kind) Signed() bool {
	return k >= Int8 && k <= Int64
}

// Unsigned reports whether k is an unsigned integer kind.
func (k Kind) Unsigned() bool {
	return k >= Uint8 && k <= Uint64
}

// Float reports whether k is a floating point kind.
func (k Kind) Float() bool {
	return k == Float32 || k == Float64
}
