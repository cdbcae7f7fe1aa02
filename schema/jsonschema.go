package schema

import (
	"math"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
)

// JSONSchema describes a row as a JSON Schema object, in the shape produced
// by the ledgerctl get and dump commands.
func (s *Schema) JSONSchema(title string) *jsonschema.Schema {
	out := &jsonschema.Schema{
		Version:    jsonschema.Version,
		Title:      title,
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}
	for _, f := range s.fields {
		out.Properties.Set(f.Name, fieldJSONSchema(f))
		out.Required = append(out.Required, f.Name)
	}
	return out
}

func fieldJSONSchema(f Field) *jsonschema.Schema {
	switch f.Kind {
	case String:
		n := uint64(f.Len)
		return &jsonschema.Schema{Type: "string", MaxLength: &n, Description: "UTF-8, at most " + strconv.Itoa(f.Len) + " bytes"}
	case Array:
		n := uint64(f.Len)
		return &jsonschema.Schema{Type: "array", Items: kindJSONSchema(f.Elem), MinItems: &n, MaxItems: &n}
	default:
		return kindJSONSchema(f.Kind)
	}
}

func kindJSONSchema(k Kind) *jsonschema.Schema {
	switch {
	case k == Bool:
		return &jsonschema.Schema{Type: "boolean"}
	case k.Float():
		return &jsonschema.Schema{Type: "number"}
	case k.Signed():
		bits := uint(k.Size() * 8)
		lo := int64(math.MinInt64) >> (64 - bits)
		hi := int64(math.MaxInt64) >> (64 - bits)
		return &jsonschema.Schema{
			Type:    "integer",
			Minimum: json.Number(strconv.FormatInt(lo, 10)),
			Maximum: json.Number(strconv.FormatInt(hi, 10)),
		}
	default:
		hi := uint64(math.MaxUint64) >> (64 - uint(k.Size()*8))
		return &jsonschema.Schema{
			Type:    "integer",
			Minimum: json.Number("0"),
			Maximum: json.Number(strconv.FormatUint(hi, 10)),
		}
	}
}
