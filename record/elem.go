package record

import (
	"fmt"
	"math"
	"reflect"

	"github.com/jordanwade90/ledger/internal/fixint"
	"github.com/jordanwade90/ledger/schema"
	"golang.org/x/exp/constraints"
)

// Number is the set of Go types an array element can be read as.
type Number interface {
	constraints.Integer | constraints.Float
}

// ElemAt returns element i of array field. T must have the same width and
// signedness as the array's element kind.
func ElemAt[T Number](v View, field, i int) T {
	b, k := elemBytes[T](v, field, i)
	return loadElem[T](k, b)
}

// SetElemAt stores x as element i of array field.
func SetElemAt[T Number](v ViewMut, field, i int, x T) {
	b, k := elemBytes[T](v.View, field, i)
	storeElem(k, b, x)
}

// Elems returns every element of array field as a []T.
func Elems[T Number](v View, field int) []T {
	b := v.field(field, schema.Array)
	f := v.s.Field(field)
	mustElem[T](f)
	return loadSlice[T](f, b)
}

func elemBytes[T Number](v View, field, i int) ([]byte, schema.Kind) {
	b := v.field(field, schema.Array)
	f := v.s.Field(field)
	mustElem[T](f)
	if i < 0 || i >= f.Len {
		panic(fmt.Sprintf("record: index %d out of range for %s", i, f))
	}
	size := f.Elem.Size()
	return b[i*size : (i+1)*size], f.Elem
}

func mustElem[T Number](f schema.Field) {
	if k := kindOf(reflect.TypeFor[T]()); k != f.Elem {
		panic(fmt.Sprintf("record: field %q holds %s elements, not %s", f.Name, f.Elem, k))
	}
}

func loadElem[T Number](k schema.Kind, b []byte) T {
	switch k {
	case schema.Int8:
		return T(int8(b[0]))
	case schema.Int16:
		return T(fixint.Get[int16](b))
	case schema.Int32:
		return T(fixint.Get[int32](b))
	case schema.Int64:
		return T(fixint.Get[int64](b))
	case schema.Uint8:
		return T(b[0])
	case schema.Uint16:
		return T(fixint.Get[uint16](b))
	case schema.Uint32:
		return T(fixint.Get[uint32](b))
	case schema.Uint64:
		return T(fixint.Get[uint64](b))
	case schema.Float32:
		return T(math.Float32frombits(fixint.Get[uint32](b)))
	case schema.Float64:
		return T(math.Float64frombits(fixint.Get[uint64](b)))
	}
	panic(fmt.Sprintf("record: kind %s is not numeric", k))
}

func storeElem[T Number](k schema.Kind, b []byte, x T) {
	switch k {
	case schema.Int8, schema.Uint8:
		b[0] = byte(x)
	case schema.Int16:
		fixint.Put(b, int16(x))
	case schema.Int32:
		fixint.Put(b, int32(x))
	case schema.Int64:
		fixint.Put(b, int64(x))
	case schema.Uint16:
		fixint.Put(b, uint16(x))
	case schema.Uint32:
		fixint.Put(b, uint32(x))
	case schema.Uint64:
		fixint.Put(b, uint64(x))
	case schema.Float32:
		fixint.Put(b, math.Float32bits(float32(x)))
	case schema.Float64:
		fixint.Put(b, math.Float64bits(float64(x)))
	default:
		panic(fmt.Sprintf("record: kind %s is not numeric", k))
	}
}

// kindOf maps a Go numeric type to the kind with the same representation.
func kindOf(t reflect.Type) schema.Kind {
	switch t.Kind() { //nolint:exhaustive // Number only admits numeric kinds.
	case reflect.Float32:
		return schema.Float32
	case reflect.Float64:
		return schema.Float64
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return [...]schema.Kind{1: schema.Int8, 2: schema.Int16, 4: schema.Int32, 8: schema.Int64}[t.Size()]
	default:
		return [...]schema.Kind{1: schema.Uint8, 2: schema.Uint16, 4: schema.Uint32, 8: schema.Uint64}[t.Size()]
	}
}
