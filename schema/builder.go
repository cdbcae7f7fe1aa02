package schema

// Builder accumulates fields in declaration order.
//
//	s, err := schema.NewBuilder().
//		Uint32("id").
//		String("title", 32).
//		Array("digest", schema.Uint8, 32).
//		Build()
type Builder struct {
	fields []Field
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Add appends a field.
func (b *Builder) Add(f Field) *Builder {
	b.fields = append(b.fields, f)
	return b
}

func (b *Builder) scalar(name string, k Kind) *Builder {
	return b.Add(Field{Name: name, Kind: k})
}

func (b *Builder) Bool(name string) *Builder    { return b.scalar(name, Bool) }
func (b *Builder) Int8(name string) *Builder    { return b.scalar(name, Int8) }
func (b *Builder) Int16(name string) *Builder   { return b.scalar(name, Int16) }
func (b *Builder) Int32(name string) *Builder   { return b.scalar(name, Int32) }
func (b *Builder) Int64(name string) *Builder   { return b.scalar(name, Int64) }
func (b *Builder) Uint8(name string) *Builder   { return b.scalar(name, Uint8) }
func (b *Builder) Uint16(name string) *Builder  { return b.scalar(name, Uint16) }
func (b *Builder) Uint32(name string) *Builder  { return b.scalar(name, Uint32) }
func (b *Builder) Uint64(name string) *Builder  { return b.scalar(name, Uint64) }
func (b *Builder) Float32(name string) *Builder { return b.scalar(name, Float32) }
func (b *Builder) Float64(name string) *Builder { return b.scalar(name, Float64) }

// String appends a capped string holding at most maxLen bytes.
func (b *Builder) String(name string, maxLen int) *Builder {
	return b.Add(Field{Name: name, Kind: String, Len: maxLen})
}

// Array appends a fixed array of n elements of kind elem.
func (b *Builder) Array(name string, elem Kind, n int) *Builder {
	return b.Add(Field{Name: name, Kind: Array, Elem: elem, Len: n})
}

// Build validates the fields and computes the layout.
func (b *Builder) Build() (*Schema, error) {
	return New(b.fields...)
}
