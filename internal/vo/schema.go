package vo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSchema is wrapped by every schema validation failure.
var ErrInvalidSchema = errors.New("invalid schema")

// Attribute declares one attribute of an entity.
type Attribute struct {
	Name    string
	Type    ScalarType
	Column  string        // SQL column expression, defaults to Name
	Search  AttributeType // default search behaviour
	CodeRef string        // code table used for lookups, informational
}

// ColumnName returns the SQL column expression for the attribute.
func (a Attribute) ColumnName() string {
	if a.Column != "" {
		return a.Column
	}
	return a.Name
}

// Join is one entry of a join set: a join-table expression and its predicate.
//
// Table is either a bare table expression ("address a"), rendered as
// "JOIN address a", or a complete join prefix ("LEFT JOIN address a").
type Join struct {
	Table string
	On    string
}

// Schema is the static declaration of one entity.
type Schema struct {
	Entity     string
	Table      string
	Identity   string   // business identity attribute
	Version    string   // version/timestamp attribute, optional
	Sequence   string   // identity sequence for sequence-based dialects, optional
	Omit       []string // attributes excluded from Diff
	Attributes []Attribute
	Joins      []Join // default join set, in insertion order
}

// Lookup returns the attribute with the given name.
func (s *Schema) Lookup(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// LookupColumn finds an attribute by result column label.
// Attribute names match first, then column expressions; both case-insensitive.
func (s *Schema) LookupColumn(label string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if strings.EqualFold(a.Name, label) {
			return a, true
		}
	}
	for _, a := range s.Attributes {
		if strings.EqualFold(a.ColumnName(), label) {
			return a, true
		}
	}
	return Attribute{}, false
}

// Names returns all attribute names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		names[i] = a.Name
	}
	return names
}

// IdentityAttribute returns the identity attribute declaration.
func (s *Schema) IdentityAttribute() Attribute {
	a, _ := s.Lookup(s.Identity)
	return a
}

// VersionAttribute returns the version attribute declaration.
// ok is false when the entity has no version attribute.
func (s *Schema) VersionAttribute() (Attribute, bool) {
	if s.Version == "" {
		return Attribute{}, false
	}
	return s.Lookup(s.Version)
}

// Omitted reports whether the attribute is excluded from Diff.
func (s *Schema) Omitted(name string) bool {
	for _, o := range s.Omit {
		if o == name {
			return true
		}
	}
	return false
}

// Validate checks the schema invariants.
// Returns the first problem found.
func (s *Schema) Validate() error {
	if s.Entity == "" {
		return fmt.Errorf("%w: entity name is required", ErrInvalidSchema)
	}
	if s.Table == "" {
		return fmt.Errorf("%w: %s: table is required", ErrInvalidSchema, s.Entity)
	}
	if len(s.Attributes) == 0 {
		return fmt.Errorf("%w: %s: at least one attribute is required", ErrInvalidSchema, s.Entity)
	}

	seen := make(map[string]bool, len(s.Attributes))
	for _, a := range s.Attributes {
		if a.Name == "" {
			return fmt.Errorf("%w: %s: attribute name is required", ErrInvalidSchema, s.Entity)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: %s: duplicate attribute %q", ErrInvalidSchema, s.Entity, a.Name)
		}
		seen[a.Name] = true
		if _, ok := scalarNames[a.Type]; !ok {
			return fmt.Errorf("%w: %s.%s: invalid type %v", ErrInvalidSchema, s.Entity, a.Name, a.Type)
		}
		if a.Search.IsDate() && !a.Type.IsTemporal() {
			return fmt.Errorf("%w: %s.%s: %v search requires a DATE or TIMESTAMP attribute", ErrInvalidSchema, s.Entity, a.Name, a.Search)
		}
	}

	if !seen[s.Identity] {
		return fmt.Errorf("%w: %s: identity attribute %q not declared", ErrInvalidSchema, s.Entity, s.Identity)
	}
	if s.Version != "" {
		if !seen[s.Version] {
			return fmt.Errorf("%w: %s: version attribute %q not declared", ErrInvalidSchema, s.Entity, s.Version)
		}
		v, _ := s.Lookup(s.Version)
		if !v.Type.IsTemporal() && v.Type != Integer && v.Type != Long {
			return fmt.Errorf("%w: %s: version attribute must be numeric or temporal, got %v", ErrInvalidSchema, s.Entity, v.Type)
		}
	}
	for _, o := range s.Omit {
		if !seen[o] {
			return fmt.Errorf("%w: %s: omitted attribute %q not declared", ErrInvalidSchema, s.Entity, o)
		}
	}
	for i, j := range s.Joins {
		if strings.TrimSpace(j.Table) == "" || strings.TrimSpace(j.On) == "" {
			return fmt.Errorf("%w: %s: join %d needs a table and a predicate", ErrInvalidSchema, s.Entity, i)
		}
	}
	return nil
}
