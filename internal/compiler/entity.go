package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recsql/internal/vo"
)

// CompileEntity parses a CUE value into an entity schema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Person: { table: "person", ... }`)
//	schema, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Person")))
//
// Attributes keep their declaration order, which is the default projection
// and the order of SET and INSERT column lists.
func CompileEntity(v cue.Value) (*vo.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &vo.Schema{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		s.Entity = labels[len(labels)-1].String()
	}

	var err error
	if s.Table, err = requiredString(v, "table"); err != nil {
		return nil, err
	}
	if s.Identity, err = requiredString(v, "identity"); err != nil {
		return nil, err
	}
	if s.Version, err = optionalString(v, "version"); err != nil {
		return nil, err
	}
	if s.Sequence, err = optionalString(v, "sequence"); err != nil {
		return nil, err
	}
	if s.Omit, err = optionalStrings(v, "omit"); err != nil {
		return nil, err
	}

	s.Attributes, err = parseAttributes(v)
	if err != nil {
		return nil, err
	}
	if len(s.Attributes) == 0 {
		return nil, &CompileError{
			Field:   "attributes",
			Message: "at least one attribute is required",
			Pos:     v.Pos(),
		}
	}

	s.Joins, err = parseJoins(v)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CompileAll compiles every entity under the top-level "entity" field.
// Entities that fail are reported and skipped.
func CompileAll(v cue.Value) ([]*vo.Schema, []error) {
	entities := v.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return nil, nil
	}
	iter, err := entities.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		schemas []*vo.Schema
		errs    []error
	)
	for iter.Next() {
		s, err := CompileEntity(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("entity.%s: %w", iter.Label(), err))
			continue
		}
		schemas = append(schemas, s)
	}
	return schemas, errs
}

// CompileString compiles CUE source text; filename is used in positions.
func CompileString(filename, src string) ([]*vo.Schema, []error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return CompileAll(v)
}

func parseAttributes(v cue.Value) ([]vo.Attribute, error) {
	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return nil, nil
	}
	iter, err := attrsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attrs []vo.Attribute
	for iter.Next() {
		name := iter.Label()
		av := iter.Value()

		// Shorthand: `name: "STRING"`.
		if typeName, err := av.String(); err == nil {
			t, err := parseType(av, name, typeName)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, vo.Attribute{Name: name, Type: t})
			continue
		}

		typeName, err := requiredString(av, "type")
		if err != nil {
			return nil, err
		}
		a := vo.Attribute{Name: name}
		if a.Type, err = parseType(av, name, typeName); err != nil {
			return nil, err
		}
		if a.Column, err = optionalString(av, "column"); err != nil {
			return nil, err
		}
		if a.CodeRef, err = optionalString(av, "coderef"); err != nil {
			return nil, err
		}
		search, err := optionalString(av, "search")
		if err != nil {
			return nil, err
		}
		if a.Search, err = vo.ParseAttributeType(search); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("attributes.%s.search", name),
				Message: err.Error(),
				Pos:     av.Pos(),
			}
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func parseType(v cue.Value, name, typeName string) (vo.ScalarType, error) {
	t, err := vo.ParseScalarType(typeName)
	if err != nil {
		return 0, &CompileError{
			Field:   fmt.Sprintf("attributes.%s.type", name),
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return t, nil
}

func parseJoins(v cue.Value) ([]vo.Join, error) {
	joinsVal := v.LookupPath(cue.ParsePath("joins"))
	if !joinsVal.Exists() {
		return nil, nil
	}
	iter, err := joinsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var joins []vo.Join
	for iter.Next() {
		jv := iter.Value()
		table, err := requiredString(jv, "table")
		if err != nil {
			return nil, err
		}
		on, err := requiredString(jv, "on")
		if err != nil {
			return nil, err
		}
		joins = append(joins, vo.Join{Table: table, On: on})
	}
	return joins, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
