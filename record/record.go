// Package record encodes and decodes fixed-layout rows.
//
// A row is a byte slice of exactly Schema.RowSize bytes. Scalars are stored
// little-endian at their field offset; a capped string is a uint16 length
// followed by a buffer of max_len bytes whose unused tail is zero. Views
// read and write rows in place without copying them out.
package record

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/jordanwade90/ledger/internal/fixint"
	"github.com/jordanwade90/ledger/schema"
)

var (
	ErrStringTooLong = errors.New("string longer than field max_len")
	ErrFieldCount    = errors.New("wrong number of values for schema")
	ErrFieldType     = errors.New("value has the wrong type for field")
	ErrValueRange    = errors.New("value out of range for field")
	ErrStaleView     = errors.New("row view used after the mapping changed")
)

// Encode writes values into row, one per schema field in order.
//
// Integer fields accept any Go integer whose value fits, float fields accept
// any Go integer or float, string fields accept string or []byte, and array
// fields accept a Go array or slice with exactly the declared element count.
// A u8 array also accepts a string or []byte no longer than the array, which
// is zero padded.
//
// On error row may be partially written.
func Encode(s *schema.Schema, row []byte, values ...any) error {
	if len(values) != s.Len() {
		return fmt.Errorf("%w: got %d values, schema has %d fields", ErrFieldCount, len(values), s.Len())
	}
	checkRow(s, row)
	for i, v := range values {
		f := s.Field(i)
		if err := putField(f, row[f.Offset:f.Offset+f.Size], v, true); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

// EncodeUnchecked is Encode without validation.
// Strings and byte arrays that are too long are truncated, integers are
// truncated to the field width, and a value of the wrong type panics.
func EncodeUnchecked(s *schema.Schema, row []byte, values ...any) {
	if len(values) != s.Len() {
		panic(fmt.Errorf("record: %w: got %d values, schema has %d fields", ErrFieldCount, len(values), s.Len()))
	}
	for i, v := range values {
		f := s.Field(i)
		if err := putField(f, row[f.Offset:f.Offset+f.Size], v, false); err != nil {
			panic(fmt.Errorf("record: field %q: %w", f.Name, err))
		}
	}
}

func checkRow(s *schema.Schema, row []byte) {
	if len(row) != s.RowSize() {
		panic(fmt.Sprintf("record: row is %d bytes, schema needs %d", len(row), s.RowSize()))
	}
}

func putField(f schema.Field, b []byte, v any, checked bool) error {
	rv := reflect.ValueOf(v)
	switch f.Kind {
	case schema.String:
		s, ok := stringValue(rv)
		if !ok {
			return fmt.Errorf("%w: %T is not a string", ErrFieldType, v)
		}
		return putString(b, f.Len, s, checked)
	case schema.Array:
		return putArray(f, b, rv, checked)
	default:
		return putScalar(f.Kind, b, rv, checked)
	}
}

func stringValue(rv reflect.Value) (string, bool) {
	switch {
	case rv.Kind() == reflect.String:
		return rv.String(), true
	case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
		return string(rv.Bytes()), true
	}
	return "", false
}

func putString(b []byte, maxLen int, s string, checked bool) error {
	if len(s) > maxLen {
		if checked {
			return fmt.Errorf("%w: %d bytes, max_len is %d", ErrStringTooLong, len(s), maxLen)
		}
		s = s[:maxLen]
	}
	fixint.Put(b, uint16(len(s)))
	n := copy(b[schema.StringPrefixSize:], s)
	clear(b[schema.StringPrefixSize+n:])
	return nil
}

func putArray(f schema.Field, b []byte, rv reflect.Value, checked bool) error {
	if f.Elem == schema.Uint8 {
		if s, ok := stringValue(rv); ok {
			if len(s) > f.Len && checked {
				return fmt.Errorf("%w: %d bytes for a [%d]u8 field", ErrValueRange, len(s), f.Len)
			}
			n := copy(b, s)
			clear(b[n:])
			return nil
		}
	}
	if rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice {
		return fmt.Errorf("%w: %s is not an array or slice", ErrFieldType, typeName(rv))
	}

	n := rv.Len()
	if n != f.Len {
		if checked {
			return fmt.Errorf("%w: %d elements, field holds %d", ErrValueRange, n, f.Len)
		}
		n = min(n, f.Len)
		clear(b)
	}
	size := f.Elem.Size()
	for i := range n {
		ev := rv.Index(i)
		if ev.Kind() == reflect.Interface {
			ev = ev.Elem()
		}
		if err := putScalar(f.Elem, b[i*size:], ev, checked); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func putScalar(k schema.Kind, b []byte, rv reflect.Value, checked bool) error {
	switch {
	case k == schema.Bool:
		if rv.Kind() != reflect.Bool {
			return fmt.Errorf("%w: %s for %s", ErrFieldType, typeName(rv), k)
		}
		b[0] = 0
		if rv.Bool() {
			b[0] = 1
		}
		return nil

	case k.Signed():
		var x int64
		switch {
		case isInt(rv):
			x = rv.Int()
		case isUint(rv):
			u := rv.Uint()
			if checked && u > math.MaxInt64 {
				return fmt.Errorf("%w: %d for %s", ErrValueRange, u, k)
			}
			x = int64(u)
		default:
			return fmt.Errorf("%w: %s for %s", ErrFieldType, typeName(rv), k)
		}
		bits := uint(k.Size() * 8)
		if checked && (x < int64(math.MinInt64)>>(64-bits) || x > int64(math.MaxInt64)>>(64-bits)) {
			return fmt.Errorf("%w: %d for %s", ErrValueRange, x, k)
		}
		putBits(b, k.Size(), uint64(x))
		return nil

	case k.Unsigned():
		var u uint64
		switch {
		case isUint(rv):
			u = rv.Uint()
		case isInt(rv):
			x := rv.Int()
			if checked && x < 0 {
				return fmt.Errorf("%w: %d for %s", ErrValueRange, x, k)
			}
			u = uint64(x)
		default:
			return fmt.Errorf("%w: %s for %s", ErrFieldType, typeName(rv), k)
		}
		if checked && u > math.MaxUint64>>(64-uint(k.Size()*8)) {
			return fmt.Errorf("%w: %d for %s", ErrValueRange, u, k)
		}
		putBits(b, k.Size(), u)
		return nil

	case k.Float():
		var x float64
		switch {
		case rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64:
			x = rv.Float()
		case isInt(rv):
			x = float64(rv.Int())
		case isUint(rv):
			x = float64(rv.Uint())
		default:
			return fmt.Errorf("%w: %s for %s", ErrFieldType, typeName(rv), k)
		}
		if k == schema.Float32 {
			if checked && !math.IsInf(x, 0) && math.Abs(x) > math.MaxFloat32 {
				return fmt.Errorf("%w: %g for %s", ErrValueRange, x, k)
			}
			fixint.Put(b, math.Float32bits(float32(x)))
		} else {
			fixint.Put(b, math.Float64bits(x))
		}
		return nil
	}
	panic(fmt.Sprintf("record: kind %s is not a scalar", k))
}

func putBits(b []byte, size int, u uint64) {
	_ = b[size-1]
	for i := range size {
		b[i] = byte(u >> (8 * i))
	}
}

func isInt(rv reflect.Value) bool {
	switch rv.Kind() { //nolint:exhaustive // Only signed integers.
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(rv reflect.Value) bool {
	switch rv.Kind() { //nolint:exhaustive // Only unsigned integers.
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func typeName(rv reflect.Value) string {
	if !rv.IsValid() {
		return "nil"
	}
	return rv.Type().String()
}
