// Package schema describes the fixed layout of a ledger row.
//
// A Schema is an ordered list of fields, each with a kind, a byte offset and a
// byte size. Fields are packed back to back with no padding, so the row size
// is the sum of the field sizes. Schemas are immutable once built and can be
// produced three ways: with a Builder, by reflecting over a struct type with
// Of, or from a YAML declaration with Parse.
package schema

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/jordanwade90/ledger/internal/fixint"
)

// ErrSchema is returned when a schema description is invalid.
var ErrSchema = errors.New("invalid schema")

// Field is one column of a row.
type Field struct {
	Name string
	Kind Kind
	// Elem is the element kind of an Array field.
	Elem Kind
	// Len is the element count of an Array field
	// or the maximum byte length of a String field.
	Len int

	// Offset and Size are assigned when the schema is built.
	Offset int
	Size   int
}

// MaxLen returns the declared maximum byte length of a String field.
func (f Field) MaxLen() int {
	if f.Kind != String {
		return 0
	}
	return f.Len
}

func (f Field) String() string {
	switch f.Kind {
	case Array:
		return fmt.Sprintf("%s [%d]%s", f.Name, f.Len, f.Elem)
	case String:
		return fmt.Sprintf("%s string(%d)", f.Name, f.Len)
	default:
		return fmt.Sprintf("%s %s", f.Name, f.Kind)
	}
}

// Schema is an immutable row layout.
type Schema struct {
	fields      []Field
	index       map[string]int
	rowSize     int
	fingerprint uint64
}

// New builds a Schema from fields in order.
// Offset and Size of the arguments are ignored and recomputed.
func New(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrSchema)
	}

	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	var offset int64
	for i, f := range fields {
		size, err := fieldSize(f)
		if err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrSchema, f.Name)
		}
		if f.Kind != Array {
			f.Elem = Invalid
		}
		if f.Kind.Primitive() {
			f.Len = 0
		}
		f.Offset = int(offset)
		f.Size = int(size)
		offset += size
		if offset > math.MaxUint32 {
			return nil, fmt.Errorf("%w: row size overflows uint32 at field %q", ErrSchema, f.Name)
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	s.rowSize = int(offset)
	s.fingerprint = fingerprint(s.fields)
	return s, nil
}

// Must panics if err is not nil. It is meant for package-level schemas.
func Must(s *Schema, err error) *Schema {
	if err != nil {
		panic(err)
	}
	return s
}

func fieldSize(f Field) (int64, error) {
	if f.Name == "" {
		return 0, fmt.Errorf("%w: field name is required", ErrSchema)
	}
	switch {
	case f.Kind.Primitive():
		return int64(f.Kind.Size()), nil
	case f.Kind == String:
		if f.Len <= 0 {
			return 0, fmt.Errorf("%w: string field %q needs a max_len", ErrSchema, f.Name)
		}
		if f.Len > MaxStringLen {
			return 0, fmt.Errorf("%w: string field %q max_len %d exceeds %d", ErrSchema, f.Name, f.Len, MaxStringLen)
		}
		return StringPrefixSize + int64(f.Len), nil
	case f.Kind == Array:
		if !f.Elem.Primitive() {
			return 0, fmt.Errorf("%w: array field %q has unsupported element kind %s", ErrSchema, f.Name, f.Elem)
		}
		if f.Len <= 0 {
			return 0, fmt.Errorf("%w: array field %q needs a positive length", ErrSchema, f.Name)
		}
		size := int64(f.Len) * int64(f.Elem.Size())
		if size > math.MaxUint32 {
			return 0, fmt.Errorf("%w: array field %q is too large", ErrSchema, f.Name)
		}
		return size, nil
	default:
		return 0, fmt.Errorf("%w: field %q has invalid kind %s", ErrSchema, f.Name, f.Kind)
	}
}

// fingerprint hashes field order, kinds and sizes.
// Names are left out so that renaming a field keeps old files readable.
func fingerprint(fields []Field) uint64 {
	h := fnv.New64a()
	buf := fixint.Append(nil, uint32(len(fields)))
	for _, f := range fields {
		buf = append(buf, byte(f.Kind), byte(f.Elem))
		buf = fixint.Append(buf, uint32(f.Len))
		buf = fixint.Append(buf, uint32(f.Size))
	}
	_, _ = h.Write(buf)
	return h.Sum64()
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns the i-th field.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Index returns the position of the named field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// RowSize returns the encoded size of one row in bytes.
func (s *Schema) RowSize() int { return s.rowSize }

// Fingerprint returns a stable hash of the layout, stored in ledger headers
// to detect a schema mismatch on open.
func (s *Schema) Fingerprint() uint64 { return s.fingerprint }

// Compatible reports whether rows written with s can be read with other.
func (s *Schema) Compatible(other *Schema) bool {
	return s.fingerprint == other.fingerprint && s.rowSize == other.rowSize
}

func (s *Schema) String() string {
	return fmt.Sprintf("schema(%d fields, %d bytes, %016x)", len(s.fields), s.rowSize, s.fingerprint)
}
