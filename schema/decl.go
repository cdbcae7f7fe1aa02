package schema

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FieldDecl is the serialized form of a Field.
type FieldDecl struct {
	Name   string `yaml:"name" json:"name"`
	Kind   string `yaml:"kind" json:"kind"`
	MaxLen int    `yaml:"max_len,omitempty" json:"max_len,omitempty"`
	Elem   string `yaml:"elem,omitempty" json:"elem,omitempty"`
	Len    int    `yaml:"len,omitempty" json:"len,omitempty"`
}

// Decl is a declarative schema, as found in YAML configuration files:
//
//	fields:
//	  - {name: id, kind: u32}
//	  - {name: title, kind: string, max_len: 32}
//	  - {name: digest, kind: array, elem: u8, len: 32}
type Decl struct {
	Fields []FieldDecl `yaml:"fields" json:"fields"`
}

// Build converts the declaration into a Schema.
func (d Decl) Build() (*Schema, error) {
	fields := make([]Field, 0, len(d.Fields))
	for i, fd := range d.Fields {
		k, err := ParseKind(fd.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, fd.Name, err)
		}
		f := Field{Name: fd.Name, Kind: k}
		switch k {
		case String:
			f.Len = fd.MaxLen
		case Array:
			elem, err := ParseKind(fd.Elem)
			if err != nil {
				return nil, fmt.Errorf("field %d (%s): element: %w", i, fd.Name, err)
			}
			f.Elem = elem
			f.Len = fd.Len
		}
		fields = append(fields, f)
	}
	return New(fields...)
}

// Decl returns the declarative form of s.
func (s *Schema) Decl() Decl {
	d := Decl{Fields: make([]FieldDecl, len(s.fields))}
	for i, f := range s.fields {
		fd := FieldDecl{Name: f.Name, Kind: f.Kind.String()}
		switch f.Kind {
		case String:
			fd.MaxLen = f.Len
		case Array:
			fd.Elem = f.Elem.String()
			fd.Len = f.Len
		}
		d.Fields[i] = fd
	}
	return d
}

// Parse reads a YAML schema declaration.
func Parse(data []byte) (*Schema, error) {
	var d Decl
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return d.Build()
}

// LoadFile reads a YAML schema declaration from path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the caller.
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// MarshalJSON encodes the declarative form of s.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Decl())
}

// MarshalYAML encodes the declarative form of s.
func (s *Schema) MarshalYAML() (any, error) {
	return s.Decl(), nil
}
