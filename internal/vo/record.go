package vo

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrUnknownAttribute is returned when a record is given an attribute
// its schema does not declare.
var ErrUnknownAttribute = errors.New("unknown attribute")

// Cloner is implemented by non-scalar record values (criteria) that need a
// deep copy when their record is cloned.
type Cloner interface {
	CloneValue() any
}

// Record is one entity instance: an attribute bag bound to a Schema.
// A Record is not safe for concurrent mutation.
type Record struct {
	schema *Schema
	values map[string]any
}

// NewRecord creates an empty record for the schema.
func NewRecord(s *Schema) *Record {
	return &Record{schema: s, values: make(map[string]any)}
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema {
	return r.schema
}

// Set stores a value. Scalars are coerced to the declared attribute type;
// other values (criteria) are stored as given.
func (r *Record) Set(name string, v any) error {
	attr, ok := r.schema.Lookup(name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", r.schema.Entity, name, ErrUnknownAttribute)
	}
	if IsScalar(v) {
		coerced, err := Coerce(attr.Type, v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", r.schema.Entity, name, err)
		}
		v = coerced
	}
	r.values[name] = v
	return nil
}

// MustSet is Set for statically known values; it panics on error and
// returns the record for chaining.
func (r *Record) MustSet(name string, v any) *Record {
	if err := r.Set(name, v); err != nil {
		panic(err)
	}
	return r
}

// Get returns the stored value and whether the attribute is present.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether the attribute is present.
func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Unset removes the attribute.
func (r *Record) Unset(name string) {
	delete(r.values, name)
}

// Len returns the number of present attributes.
func (r *Record) Len() int {
	return len(r.values)
}

// Names returns the present attribute names in schema declaration order.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.values))
	for _, a := range r.schema.Attributes {
		if _, ok := r.values[a.Name]; ok {
			names = append(names, a.Name)
		}
	}
	return names
}

// ID returns the identity value, or nil.
func (r *Record) ID() any {
	return r.values[r.schema.Identity]
}

// Version returns the version/timestamp value, or nil.
func (r *Record) Version() any {
	if r.schema.Version == "" {
		return nil
	}
	return r.values[r.schema.Version]
}

// Map returns a shallow copy of the values keyed by attribute name.
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{schema: r.schema, values: make(map[string]any, len(r.values))}
	for k, v := range r.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return bytes.Clone(x)
	case Cloner:
		return x.CloneValue()
	}
	return v
}

// Diff returns attribute -> new value for every attribute whose value in r
// differs from ref. Absent attributes count as nil; omitted attributes are
// skipped. A nil ref yields every present attribute.
func (r *Record) Diff(ref *Record) map[string]any {
	diff := make(map[string]any)
	for _, a := range r.schema.Attributes {
		if r.schema.Omitted(a.Name) {
			continue
		}
		mine, inMine := r.values[a.Name]
		if ref == nil {
			if inMine {
				diff[a.Name] = cloneValue(mine)
			}
			continue
		}
		theirs, inTheirs := ref.values[a.Name]
		if !inMine && !inTheirs {
			continue
		}
		if !Equal(mine, theirs) {
			diff[a.Name] = cloneValue(mine)
		}
	}
	return diff
}

// Equal reports whether both records have the same schema and values.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.schema != o.schema || len(r.values) != len(o.values) {
		return false
	}
	for k, v := range r.values {
		ov, ok := o.values[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// String renders the record as Entity{a=1, b=x} in schema order.
func (r *Record) String() string {
	var buf bytes.Buffer
	buf.WriteString(r.schema.Entity)
	buf.WriteByte('{')
	for i, name := range r.Names() {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s=%v", name, r.values[name])
	}
	buf.WriteByte('}')
	return buf.String()
}
