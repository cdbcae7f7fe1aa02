package ledger

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/jordanwade90/ledger/record"
	"github.com/jordanwade90/ledger/schema"
)

// Table is a Ledger whose rows are values of struct type T.
// The schema comes from schema.Of[T]; see there for the struct tags.
//
// Get decodes a row into a fresh T, so unlike a View the result stays valid
// after the ledger grows.
type Table[T any] struct {
	l *Ledger
	// index maps schema fields to struct fields of T.
	index []int
}

func tableSchema[T any]() (*schema.Schema, []int, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("%w: Table type must be a struct, got %s", schema.ErrSchema, t)
	}
	return schema.FromType(t)
}

// NewTable wraps an open ledger. Its schema must have the layout of T.
func NewTable[T any](l *Ledger) (*Table[T], error) {
	s, index, err := tableSchema[T]()
	if err != nil {
		return nil, err
	}
	if !s.Compatible(l.Schema()) {
		return nil, fmt.Errorf("%w: %s does not match %s", ErrSchemaMismatch, reflect.TypeFor[T](), l.Path())
	}
	return &Table[T]{l: l, index: index}, nil
}

// CreateTable creates a new ledger for rows of type T.
func CreateTable[T any](path, name, description string, opts *Options) (*Table[T], error) {
	s, index, err := tableSchema[T]()
	if err != nil {
		return nil, err
	}
	l, err := Create(path, s, name, description, opts)
	if err != nil {
		return nil, err
	}
	return &Table[T]{l: l, index: index}, nil
}

// OpenTable opens an existing ledger holding rows of type T.
func OpenTable[T any](path string, opts *Options) (*Table[T], error) {
	s, index, err := tableSchema[T]()
	if err != nil {
		return nil, err
	}
	l, err := Open(path, s, opts)
	if err != nil {
		return nil, err
	}
	return &Table[T]{l: l, index: index}, nil
}

// Ledger returns the underlying ledger.
func (t *Table[T]) Ledger() *Ledger { return t.l }

// Len returns the number of rows.
func (t *Table[T]) Len() uint64 { return t.l.Len() }

// Close closes the underlying ledger.
func (t *Table[T]) Close() error { return t.l.Close() }

func (t *Table[T]) values(row *T) []any {
	rv := reflect.ValueOf(row).Elem()
	out := make([]any, len(t.index))
	for i, fi := range t.index {
		out[i] = rv.Field(fi).Interface()
	}
	return out
}

// Insert appends row and returns its id.
func (t *Table[T]) Insert(row T) (uint64, error) {
	return t.l.Insert(t.values(&row)...)
}

// Update overwrites row id.
func (t *Table[T]) Update(id uint64, row T) error {
	return t.l.Update(id, t.values(&row)...)
}

// Get decodes row id, or returns false if id >= Len.
func (t *Table[T]) Get(id uint64) (T, bool) {
	var out T
	v, ok := t.l.Row(id)
	if !ok {
		return out, false
	}
	t.decode(v, &out)
	return out, true
}

// All iterates over every row in id order.
func (t *Table[T]) All() iter.Seq2[uint64, T] {
	return func(yield func(uint64, T) bool) {
		for id, v := range t.l.All() {
			var row T
			t.decode(v, &row)
			if !yield(id, row) {
				return
			}
		}
	}
}

func (t *Table[T]) decode(v record.View, out *T) {
	rv := reflect.ValueOf(out).Elem()
	for i, fi := range t.index {
		assign(rv.Field(fi), v.Value(i))
	}
}

// assign stores a decoded field value into a struct field whose type may be
// a named type or a wider Go integer than the stored kind.
func assign(dst reflect.Value, val any) {
	src := reflect.ValueOf(val)
	if dst.Kind() == reflect.Array {
		elem := dst.Type().Elem()
		for j := range dst.Len() {
			dst.Index(j).Set(src.Index(j).Convert(elem))
		}
		return
	}
	dst.Set(src.Convert(dst.Type()))
}
