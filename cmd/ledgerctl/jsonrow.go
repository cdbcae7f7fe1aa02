package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jordanwade90/ledger/record"
	"github.com/jordanwade90/ledger/schema"
)

// idKey is the member carrying the row id in printed rows.
// It is ignored on input.
const idKey = "_id"

// readObjects decodes a stream of JSON objects, keeping numbers exact.
func readObjects(r io.Reader, fn func(map[string]any) error) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
}

// rowValues converts a JSON object into positional values for Insert.
// Every schema field must be present.
func rowValues(s *schema.Schema, obj map[string]any) ([]any, error) {
	values := make([]any, s.Len())
	for i := range values {
		f := s.Field(i)
		v, ok := obj[f.Name]
		if !ok {
			return nil, fmt.Errorf("missing field %q", f.Name)
		}
		x, err := fromJSON(f, v)
		if err != nil {
			return nil, err
		}
		values[i] = x
	}
	return values, unknownFields(s, obj)
}

// patchValues replaces the fields present in obj.
func patchValues(s *schema.Schema, values []any, obj map[string]any) error {
	for i := range values {
		f := s.Field(i)
		v, ok := obj[f.Name]
		if !ok {
			continue
		}
		x, err := fromJSON(f, v)
		if err != nil {
			return err
		}
		values[i] = x
	}
	return unknownFields(s, obj)
}

func unknownFields(s *schema.Schema, obj map[string]any) error {
	for name := range obj {
		if _, ok := s.Index(name); !ok && name != idKey {
			return fmt.Errorf("unknown field %q", name)
		}
	}
	return nil
}

func fromJSON(f schema.Field, v any) (any, error) {
	switch f.Kind {
	case schema.String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: want a string, got %T", f.Name, v)
		}
		return s, nil
	case schema.Array:
		if s, ok := v.(string); ok && f.Elem == schema.Uint8 {
			return s, nil
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("field %q: want an array, got %T", f.Name, v)
		}
		out := make([]any, len(list))
		for i, e := range list {
			x, err := scalarFromJSON(f.Elem, e)
			if err != nil {
				return nil, fmt.Errorf("field %q element %d: %w", f.Name, i, err)
			}
			out[i] = x
		}
		return out, nil
	default:
		x, err := scalarFromJSON(f.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		return x, nil
	}
}

func scalarFromJSON(k schema.Kind, v any) (any, error) {
	if k == schema.Bool {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want a boolean, got %T", v)
		}
		return b, nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return nil, fmt.Errorf("want a number, got %T", v)
	}
	switch {
	case k.Float():
		return n.Float64()
	case k.Signed():
		return n.Int64()
	default:
		return strconv.ParseUint(n.String(), 10, 64)
	}
}

// toJSON renders a row as a JSON object. Byte arrays become arrays of
// numbers rather than base64.
func toJSON(id uint64, v record.View) map[string]any {
	obj := v.Map()
	for name, x := range obj {
		if b, ok := x.([]byte); ok {
			ints := make([]int, len(b))
			for i, c := range b {
				ints[i] = int(c)
			}
			obj[name] = ints
		}
	}
	obj[idKey] = id
	return obj
}
