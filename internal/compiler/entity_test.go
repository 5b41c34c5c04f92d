package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/testutil"
	"github.com/roach88/recsql/internal/vo"
)

const demoCUE = `
entity: Person: {
	table:    "person"
	identity: "id"
	version:  "version"
	sequence: "person_seq"
	omit: ["version"]
	attributes: {
		id:      "LONG"
		name:    "STRING"
		email:   {type: "STRING", search: "UPPER_LIKE"}
		born:    {type: "DATE", search: "DAY_EQU"}
		score:   "DOUBLE"
		active:  "BOOLEAN"
		owner:   {type: "STRING", search: "EQUAL"}
		version: "LONG"
	}
}

entity: Address: {
	table:    "address"
	identity: "id"
	version:  "updated"
	attributes: {
		id:         {type: "STRING", column: "address.id", search: "EQUAL"}
		personId:   {type: "LONG", column: "person_id"}
		city:       {type: "STRING", search: "UPPER"}
		updated:    "TIMESTAMP"
		personName: {type: "STRING", column: "p.name"}
	}
	joins: [{table: "LEFT JOIN person p", on: "p.id = address.person_id"}]
}
`

func TestCompileString_MatchesFixtures(t *testing.T) {
	schemas, errs := CompileString("demo.cue", demoCUE)
	require.Empty(t, errs)
	require.Len(t, schemas, 2)

	assert.Equal(t, testutil.PersonSchema(), schemas[0])
	assert.Equal(t, testutil.AddressSchema(), schemas[1])
	for _, s := range schemas {
		assert.NoError(t, s.Validate())
		assert.Empty(t, Validate(s))
	}
}

func TestCompileEntity_CodeRef(t *testing.T) {
	v := cuecontext.New().CompileString(`
		entity: Country: {
			table:    "country"
			identity: "code"
			attributes: {
				code:      "STRING"
				continent: {type: "STRING", coderef: "CONTINENTS"}
			}
		}
	`)
	require.NoError(t, v.Err())

	s, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Country")))
	require.NoError(t, err)
	assert.Equal(t, "Country", s.Entity)
	assert.Equal(t, "CONTINENTS", s.Attributes[1].CodeRef)
	assert.Equal(t, vo.SearchDefault, s.Attributes[1].Search)
	assert.Empty(t, s.Version)
	assert.Nil(t, s.Joins)
}

func TestCompileEntity_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing table",
			src:   `entity: X: {identity: "id", attributes: {id: "LONG"}}`,
			field: "table",
		},
		{
			name:  "missing identity",
			src:   `entity: X: {table: "x", attributes: {id: "LONG"}}`,
			field: "identity",
		},
		{
			name:  "no attributes",
			src:   `entity: X: {table: "x", identity: "id"}`,
			field: "attributes",
		},
		{
			name:  "unknown type",
			src:   `entity: X: {table: "x", identity: "id", attributes: {id: "UUID"}}`,
			field: "attributes.id.type",
		},
		{
			name:  "unknown search",
			src:   `entity: X: {table: "x", identity: "id", attributes: {id: {type: "LONG", search: "FUZZY"}}}`,
			field: "attributes.id.search",
		},
		{
			name:  "attribute without type",
			src:   `entity: X: {table: "x", identity: "id", attributes: {id: {column: "x_id"}}}`,
			field: "type",
		},
		{
			name:  "join without predicate",
			src:   `entity: X: {table: "x", identity: "id", attributes: {id: "LONG"}, joins: [{table: "y"}]}`,
			field: "on",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schemas, errs := CompileString("bad.cue", tt.src)
			assert.Empty(t, schemas)
			require.Len(t, errs, 1)

			var ce *CompileError
			require.True(t, errors.As(errs[0], &ce), "got %v", errs[0])
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileString_SyntaxError(t *testing.T) {
	_, errs := CompileString("broken.cue", `entity: X: {table: `)
	require.Len(t, errs, 1)

	var ce *CompileError
	require.True(t, errors.As(errs[0], &ce))
	assert.Equal(t, "cue", ce.Field)
	assert.Contains(t, ce.Error(), "broken.cue")
}

func TestCompileString_KeepsGoodEntities(t *testing.T) {
	schemas, errs := CompileString("mixed.cue", `
		entity: Good: {table: "good", identity: "id", attributes: {id: "LONG"}}
		entity: Bad: {table: "bad", attributes: {id: "LONG"}}
	`)
	require.Len(t, schemas, 1)
	assert.Equal(t, "Good", schemas[0].Entity)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "entity.Bad")
}

func TestCompileString_NoEntities(t *testing.T) {
	schemas, errs := CompileString("empty.cue", `other: 1`)
	assert.Empty(t, schemas)
	assert.Empty(t, errs)
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "table", Message: "table is required"}
	assert.Equal(t, "table: table is required", err.Error())
}
