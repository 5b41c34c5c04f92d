package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/recsql/internal/vo"
)

// Validation error codes (E100-E199)
const (
	ErrTableMissing       = "E101" // table is required
	ErrNoAttributes       = "E102" // at least one attribute required
	ErrIdentityUndeclared = "E103" // identity names no attribute
	ErrInvalidFieldType   = "E104" // invalid scalar or search type
	ErrDuplicateName      = "E105" // duplicate attribute or entity name
	ErrDateSearch         = "E106" // DAY/MONTH/YEAR search on a non-temporal attribute
	ErrInvalidVersion     = "E107" // version undeclared or of the wrong type
	ErrInvalidOmit        = "E108" // omit names no attribute
	ErrInvalidJoin        = "E109" // join without table or predicate
	ErrUnusedSequence     = "E110" // sequence declared for a STRING identity
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Entity  string `json:"entity,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled schema and returns all problems found
// (does not fail-fast). vo.Schema.Validate stops at the first.
func Validate(s *vo.Schema) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Entity:  s.Entity,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if strings.TrimSpace(s.Table) == "" {
		add("table", ErrTableMissing, "table is required")
	}
	if len(s.Attributes) == 0 {
		add("attributes", ErrNoAttributes, "at least one attribute is required")
	}

	names := make(map[string]vo.Attribute, len(s.Attributes))
	for i, a := range s.Attributes {
		field := fmt.Sprintf("attributes[%d]", i)
		if _, dup := names[a.Name]; dup {
			add(field, ErrDuplicateName, "duplicate attribute %q", a.Name)
		}
		names[a.Name] = a

		if !a.Type.Valid() {
			add(field+".type", ErrInvalidFieldType, "invalid type for %q", a.Name)
		}
		if !a.Search.Valid() {
			add(field+".search", ErrInvalidFieldType, "invalid search type for %q", a.Name)
		}
		if a.Search.IsDate() && !a.Type.IsTemporal() {
			add(field+".search", ErrDateSearch, "%v search needs a DATE or TIMESTAMP attribute, %q is %v", a.Search, a.Name, a.Type)
		}
	}

	id, ok := names[s.Identity]
	if !ok {
		add("identity", ErrIdentityUndeclared, "identity attribute %q not declared", s.Identity)
	} else if s.Sequence != "" && id.Type == vo.String {
		add("sequence", ErrUnusedSequence, "sequence %q is never used: identity %q is a STRING", s.Sequence, s.Identity)
	}

	if s.Version != "" {
		v, ok := names[s.Version]
		switch {
		case !ok:
			add("version", ErrInvalidVersion, "version attribute %q not declared", s.Version)
		case !v.Type.IsTemporal() && v.Type != vo.Integer && v.Type != vo.Long:
			add("version", ErrInvalidVersion, "version attribute %q must be numeric or temporal, got %v", s.Version, v.Type)
		}
	}

	for i, o := range s.Omit {
		if _, ok := names[o]; !ok {
			add(fmt.Sprintf("omit[%d]", i), ErrInvalidOmit, "omitted attribute %q not declared", o)
		}
	}
	for i, j := range s.Joins {
		if strings.TrimSpace(j.Table) == "" || strings.TrimSpace(j.On) == "" {
			add(fmt.Sprintf("joins[%d]", i), ErrInvalidJoin, "join needs a table and a predicate")
		}
	}
	return errs
}

// ValidateAll validates each schema and rejects duplicate entity names.
func ValidateAll(schemas []*vo.Schema) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		if seen[s.Entity] {
			errs = append(errs, ValidationError{
				Entity:  s.Entity,
				Field:   "entity",
				Message: fmt.Sprintf("duplicate entity %q", s.Entity),
				Code:    ErrDuplicateName,
			})
		}
		seen[s.Entity] = true
		errs = append(errs, Validate(s)...)
	}
	return errs
}
