package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/recsql/internal/testutil"
	"github.com/roach88/recsql/internal/vo"
)

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, Validate(testutil.PersonSchema()))
	assert.Empty(t, Validate(testutil.AddressSchema()))
}

func TestValidate_CollectsAll(t *testing.T) {
	s := &vo.Schema{
		Entity:   "Broken",
		Identity: "id",
		Version:  "label",
		Sequence: "broken_seq",
		Omit:     []string{"ghost"},
		Attributes: []vo.Attribute{
			{Name: "id", Type: vo.String},
			{Name: "label", Type: vo.String},
			{Name: "label", Type: vo.String, Search: vo.SearchMonthEqu},
			{Name: "blob", Type: vo.ScalarType(99)},
		},
		Joins: []vo.Join{{Table: "other o"}},
	}

	errs := Validate(s)
	assert.ElementsMatch(t, []string{
		ErrTableMissing,
		ErrDuplicateName,
		ErrDateSearch,
		ErrInvalidFieldType,
		ErrUnusedSequence,
		ErrInvalidVersion,
		ErrInvalidOmit,
		ErrInvalidJoin,
	}, codes(errs))
	for _, e := range errs {
		assert.Equal(t, "Broken", e.Entity)
	}
}

func TestValidate_Identity(t *testing.T) {
	s := &vo.Schema{
		Entity:     "X",
		Table:      "x",
		Identity:   "missing",
		Attributes: []vo.Attribute{{Name: "id", Type: vo.Long}},
	}
	assert.Equal(t, []string{ErrIdentityUndeclared}, codes(Validate(s)))

	s.Identity = ""
	s.Attributes = nil
	assert.ElementsMatch(t, []string{ErrNoAttributes, ErrIdentityUndeclared}, codes(Validate(s)))
}

func TestValidateAll_DuplicateEntity(t *testing.T) {
	errs := ValidateAll([]*vo.Schema{testutil.PersonSchema(), testutil.PersonSchema()})
	assert.Equal(t, []string{ErrDuplicateName}, codes(errs))
	assert.Equal(t, "[E105] Person.entity: duplicate entity \"Person\"", errs[0].Error())
}
