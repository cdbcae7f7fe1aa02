package record

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/jordanwade90/ledger/internal/fixint"
	"github.com/jordanwade90/ledger/schema"
)

// Epoch counts remaps of the memory a set of views points into.
// A view remembers the epoch it was created in and refuses to touch its
// bytes once the epoch has moved on.
type Epoch struct {
	n atomic.Uint64
}

// Advance invalidates every view created before the call.
func (e *Epoch) Advance() { e.n.Add(1) }

// Load returns the current epoch.
func (e *Epoch) Load() uint64 { return e.n.Load() }

// View is a read-only window onto one row.
//
// A View does not own its bytes. Any accessor called after the epoch it was
// created under has advanced panics with ErrStaleView.
type View struct {
	s     *schema.Schema
	b     []byte
	epoch *Epoch
	at    uint64
}

// NewView binds s to row. A nil epoch produces a view that never goes stale,
// which is right for rows in ordinary heap memory.
func NewView(s *schema.Schema, row []byte, epoch *Epoch) View {
	checkRow(s, row)
	v := View{s: s, b: row, epoch: epoch}
	if epoch != nil {
		v.at = epoch.Load()
	}
	return v
}

// Valid reports whether the view may still be used.
func (v View) Valid() bool {
	return v.epoch == nil || v.epoch.Load() == v.at
}

func (v View) check() {
	if !v.Valid() {
		panic(ErrStaleView)
	}
}

// Schema returns the schema the view decodes with.
func (v View) Schema() *schema.Schema { return v.s }

// Row returns the raw bytes of the row. The slice aliases the mapping.
func (v View) Row() []byte {
	v.check()
	return v.b
}

// Bytes returns the raw bytes of field i. The slice aliases the mapping.
func (v View) Bytes(i int) []byte {
	v.check()
	f := v.s.Field(i)
	return v.b[f.Offset : f.Offset+f.Size]
}

func (v View) field(i int, k schema.Kind) []byte {
	v.check()
	f := v.s.Field(i)
	if f.Kind != k {
		panic(fmt.Sprintf("record: field %q is %s, not %s", f.Name, f.Kind, k))
	}
	return v.b[f.Offset : f.Offset+f.Size]
}

func (v View) Bool(i int) bool       { return v.field(i, schema.Bool)[0] != 0 }
func (v View) Int8(i int) int8       { return int8(v.field(i, schema.Int8)[0]) }
func (v View) Int16(i int) int16     { return fixint.Get[int16](v.field(i, schema.Int16)) }
func (v View) Int32(i int) int32     { return fixint.Get[int32](v.field(i, schema.Int32)) }
func (v View) Int64(i int) int64     { return fixint.Get[int64](v.field(i, schema.Int64)) }
func (v View) Uint8(i int) uint8     { return v.field(i, schema.Uint8)[0] }
func (v View) Uint16(i int) uint16   { return fixint.Get[uint16](v.field(i, schema.Uint16)) }
func (v View) Uint32(i int) uint32   { return fixint.Get[uint32](v.field(i, schema.Uint32)) }
func (v View) Uint64(i int) uint64   { return fixint.Get[uint64](v.field(i, schema.Uint64)) }
func (v View) Float32(i int) float32 { return math.Float32frombits(fixint.Get[uint32](v.field(i, schema.Float32))) }
func (v View) Float64(i int) float64 { return math.Float64frombits(fixint.Get[uint64](v.field(i, schema.Float64))) }

// StringBytes returns the stored bytes of string field i without copying.
// A length prefix larger than max_len is clamped; Ledger.Verify reports it.
func (v View) StringBytes(i int) []byte {
	b := v.field(i, schema.String)
	n := min(int(fixint.Get[uint16](b)), len(b)-schema.StringPrefixSize)
	return b[schema.StringPrefixSize : schema.StringPrefixSize+n]
}

// String returns a copy of string field i.
func (v View) String(i int) string { return string(v.StringBytes(i)) }

// StringLen returns the raw length prefix of string field i.
func (v View) StringLen(i int) int {
	return int(fixint.Get[uint16](v.field(i, schema.String)))
}

// Value decodes field i into a Go value: bool, a sized integer or float,
// string, or a slice of the element type for arrays.
func (v View) Value(i int) any {
	f := v.s.Field(i)
	switch f.Kind {
	case schema.String:
		return v.String(i)
	case schema.Array:
		return loadArray(f, v.Bytes(i))
	default:
		return loadScalar(f.Kind, v.Bytes(i))
	}
}

// Values decodes every field in schema order.
func (v View) Values() []any {
	out := make([]any, v.s.Len())
	for i := range out {
		out[i] = v.Value(i)
	}
	return out
}

// Map decodes every field keyed by name.
func (v View) Map() map[string]any {
	out := make(map[string]any, v.s.Len())
	for i := range v.s.Len() {
		out[v.s.Field(i).Name] = v.Value(i)
	}
	return out
}

func loadScalar(k schema.Kind, b []byte) any {
	switch k {
	case schema.Bool:
		return b[0] != 0
	case schema.Int8:
		return int8(b[0])
	case schema.Int16:
		return fixint.Get[int16](b)
	case schema.Int32:
		return fixint.Get[int32](b)
	case schema.Int64:
		return fixint.Get[int64](b)
	case schema.Uint8:
		return b[0]
	case schema.Uint16:
		return fixint.Get[uint16](b)
	case schema.Uint32:
		return fixint.Get[uint32](b)
	case schema.Uint64:
		return fixint.Get[uint64](b)
	case schema.Float32:
		return math.Float32frombits(fixint.Get[uint32](b))
	case schema.Float64:
		return math.Float64frombits(fixint.Get[uint64](b))
	}
	panic(fmt.Sprintf("record: kind %s is not a scalar", k))
}

func loadArray(f schema.Field, b []byte) any {
	switch f.Elem {
	case schema.Bool:
		out := make([]bool, f.Len)
		for i := range out {
			out[i] = b[i] != 0
		}
		return out
	case schema.Int8:
		return loadSlice[int8](f, b)
	case schema.Int16:
		return loadSlice[int16](f, b)
	case schema.Int32:
		return loadSlice[int32](f, b)
	case schema.Int64:
		return loadSlice[int64](f, b)
	case schema.Uint8:
		return append([]byte(nil), b...)
	case schema.Uint16:
		return loadSlice[uint16](f, b)
	case schema.Uint32:
		return loadSlice[uint32](f, b)
	case schema.Uint64:
		return loadSlice[uint64](f, b)
	case schema.Float32:
		return loadSlice[float32](f, b)
	case schema.Float64:
		return loadSlice[float64](f, b)
	}
	panic(fmt.Sprintf("record: bad array element kind %s", f.Elem))
}

func loadSlice[T Number](f schema.Field, b []byte) []T {
	out := make([]T, f.Len)
	size := f.Elem.Size()
	for i := range out {
		out[i] = loadElem[T](f.Elem, b[i*size:])
	}
	return out
}

// ViewMut is a View that can also write the row in place.
type ViewMut struct {
	View
}

// NewViewMut binds s to row for reading and writing.
func NewViewMut(s *schema.Schema, row []byte, epoch *Epoch) ViewMut {
	return ViewMut{NewView(s, row, epoch)}
}

func (v ViewMut) SetBool(i int, x bool) {
	b := v.field(i, schema.Bool)
	b[0] = 0
	if x {
		b[0] = 1
	}
}

func (v ViewMut) SetInt8(i int, x int8)     { v.field(i, schema.Int8)[0] = byte(x) }
func (v ViewMut) SetInt16(i int, x int16)   { fixint.Put(v.field(i, schema.Int16), x) }
func (v ViewMut) SetInt32(i int, x int32)   { fixint.Put(v.field(i, schema.Int32), x) }
func (v ViewMut) SetInt64(i int, x int64)   { fixint.Put(v.field(i, schema.Int64), x) }
func (v ViewMut) SetUint8(i int, x uint8)   { v.field(i, schema.Uint8)[0] = x }
func (v ViewMut) SetUint16(i int, x uint16) { fixint.Put(v.field(i, schema.Uint16), x) }
func (v ViewMut) SetUint32(i int, x uint32) { fixint.Put(v.field(i, schema.Uint32), x) }
func (v ViewMut) SetUint64(i int, x uint64) { fixint.Put(v.field(i, schema.Uint64), x) }

func (v ViewMut) SetFloat32(i int, x float32) {
	fixint.Put(v.field(i, schema.Float32), math.Float32bits(x))
}

func (v ViewMut) SetFloat64(i int, x float64) {
	fixint.Put(v.field(i, schema.Float64), math.Float64bits(x))
}

// SetString stores s in string field i.
// If s is longer than the field's max_len the stored value is left as it was
// and ErrStringTooLong is returned.
func (v ViewMut) SetString(i int, s string) error {
	f := v.s.Field(i)
	if err := putString(v.field(i, schema.String), f.Len, s, true); err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	return nil
}

// SetStringUnchecked stores s in string field i, truncated to max_len bytes.
func (v ViewMut) SetStringUnchecked(i int, s string) {
	_ = putString(v.field(i, schema.String), v.s.Field(i).Len, s, false)
}

// Set stores x in field i with the same conversions as Encode.
// On error the field is left unchanged.
func (v ViewMut) Set(i int, x any) error {
	b := v.Bytes(i)
	f := v.s.Field(i)
	tmp := make([]byte, len(b))
	if err := putField(f, tmp, x, true); err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	copy(b, tmp)
	return nil
}

// SetAll overwrites the whole row with values, as Encode does.
// On error the row is left unchanged.
func (v ViewMut) SetAll(values ...any) error {
	row := v.Row()
	tmp := make([]byte, len(row))
	if err := Encode(v.s, tmp, values...); err != nil {
		return err
	}
	copy(row, tmp)
	return nil
}

// Zero clears the row.
func (v ViewMut) Zero() { clear(v.Row()) }

// Copy overwrites the row with src, which must use the same schema layout.
func (v ViewMut) Copy(src View) {
	if src.s.RowSize() != v.s.RowSize() {
		panic("record: copy between rows of different sizes")
	}
	copy(v.Row(), src.Row())
}
