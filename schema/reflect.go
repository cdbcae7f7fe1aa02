package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Of derives a Schema from the exported fields of struct type T.
//
// Fields are laid out in declaration order. The `ledger` struct tag sets the
// field name and, for strings, the maximum length:
//
//	type FileManifest struct {
//		ID       uint32
//		Title    string `ledger:"title,max_len=32"`
//		Location string `ledger:",max_len=64"`
//		Digest   [32]byte
//		Scratch  int    `ledger:"-"`
//	}
//
// int and uint map to 64-bit kinds. Fixed arrays of primitives map to Array.
// Any other field type is an error.
func Of[T any]() (*Schema, error) {
	s, _, err := FromType(reflect.TypeFor[T]())
	return s, err
}

// FromType is Of for a reflect.Type. It also returns, for every schema
// field, the index of the struct field it was derived from.
func FromType(t reflect.Type) (*Schema, []int, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("%w: type must be a struct or pointer to struct, got %s", ErrSchema, t.Kind())
	}

	var fields []Field
	var index []int
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("ledger")
		if tag == "-" {
			continue
		}
		f, err := reflectField(sf, tag)
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, f)
		index = append(index, i)
	}

	s, err := New(fields...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t, err)
	}
	return s, index, nil
}

func reflectField(sf reflect.StructField, tag string) (Field, error) {
	f := Field{Name: sf.Name}
	maxLen := 0
	if tag != "" {
		name, opts, _ := strings.Cut(tag, ",")
		if name != "" {
			f.Name = name
		}
		for _, opt := range strings.Split(opts, ",") {
			if opt == "" {
				continue
			}
			key, val, _ := strings.Cut(opt, "=")
			switch key {
			case "max_len":
				n, err := strconv.Atoi(val)
				if err != nil {
					return Field{}, fmt.Errorf("%w: field %s: bad max_len %q", ErrSchema, sf.Name, val)
				}
				maxLen = n
			default:
				return Field{}, fmt.Errorf("%w: field %s: unknown tag option %q", ErrSchema, sf.Name, key)
			}
		}
	}

	switch sf.Type.Kind() {
	case reflect.String:
		if maxLen == 0 {
			return Field{}, fmt.Errorf("%w: string field %s needs `ledger:\",max_len=N\"`", ErrSchema, sf.Name)
		}
		f.Kind = String
		f.Len = maxLen
	case reflect.Array:
		elem, ok := kindOf(sf.Type.Elem().Kind())
		if !ok {
			return Field{}, fmt.Errorf("%w: field %s: unsupported array element %s", ErrSchema, sf.Name, sf.Type.Elem())
		}
		f.Kind = Array
		f.Elem = elem
		f.Len = sf.Type.Len()
	default:
		k, ok := kindOf(sf.Type.Kind())
		if !ok {
			return Field{}, fmt.Errorf("%w: field %s: unsupported type %s", ErrSchema, sf.Name, sf.Type)
		}
		f.Kind = k
	}
	if maxLen != 0 && f.Kind != String {
		return Field{}, fmt.Errorf("%w: field %s: max_len only applies to strings", ErrSchema, sf.Name)
	}
	return f, nil
}

func kindOf(k reflect.Kind) (Kind, bool) {
	switch k { //nolint:exhaustive // Everything else is unsupported.
	case reflect.Bool:
		return Bool, true
	case reflect.Int8:
		return Int8, true
	case reflect.Int16:
		return Int16, true
	case reflect.Int32:
		return Int32, true
	case reflect.Int64, reflect.Int:
		return Int64, true
	case reflect.Uint8:
		return Uint8, true
	case reflect.Uint16:
		return Uint16, true
	case reflect.Uint32:
		return Uint32, true
	case reflect.Uint64, reflect.Uint:
		return Uint64, true
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	}
	return Invalid, false
}
