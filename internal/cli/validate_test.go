package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/compiler"
)

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func runValidateCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateDemoSchema(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "demo.cue", string(demoCUE))

	out, err := runValidateCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 entities valid")
	assert.Contains(t, out, "Address (address, 5 attributes)")
	assert.Contains(t, out, "Person (person, 8 attributes)")
}

func TestValidateNonexistentDirectory(t *testing.T) {
	out, err := runValidateCmd(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := runValidateCmd(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateCodeRefs(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "country.cue", `
package test

entity: Country: {
	table:    "country"
	identity: "code"
	attributes: {
		code:      "STRING"
		continent: {type: "STRING", coderef: "CONTINENTS"}
	}
}
`)

	out, err := runValidateCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "continent -> coderef CONTINENTS")

	out, err = runValidateCmd(t, "json", dir)
	require.NoError(t, err)
	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Entities, 1)
	assert.Equal(t, map[string]string{"continent": "CONTINENTS"}, resp.Data.Entities[0].CodeRefs)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
package test

entity: NoTable: {
	identity: "id"
	attributes: id: "LONG"
}

entity: Wrong: {
	table:    "wrong"
	identity: "key"
	version:  "label"
	attributes: {
		id:    {type: "LONG", search: "DAY_EQU"}
		label: "STRING"
	}
}
`)

	out, err := runValidateCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrTableMissing)
	assert.Contains(t, out, compiler.ErrIdentityUndeclared)
	assert.Contains(t, out, compiler.ErrInvalidVersion)
	assert.Contains(t, out, compiler.ErrDateSearch)
}

func TestValidateInvalidSchemaJSON(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
package test

entity: Bad: {
	table:    "bad"
	identity: "id"
	attributes: id: "DECIMAL"
}
`)

	out, err := runValidateCmd(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, compiler.ErrInvalidFieldType, resp.Error.Code)
}

func TestValidateSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "broken.cue", "package test\n\nentity: {\n")

	out, err := runValidateCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeLoadFailed)
}

func TestValidateSeveralDirectories(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeCUE(t, first, "demo.cue", string(demoCUE))
	writeCUE(t, second, "dup.cue", `
package other

entity: Person: {
	table:    "people"
	identity: "id"
	attributes: id: "LONG"
}
`)

	errs, err := ValidateSchemaDirs(first, second)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, compiler.ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "Person", errs[0].Entity)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"table", compiler.ErrTableMissing},
		{"identity", compiler.ErrIdentityUndeclared},
		{"attributes", compiler.ErrNoAttributes},
		{"attributes.born.type", compiler.ErrInvalidFieldType},
		{"attributes.born.search", compiler.ErrInvalidFieldType},
		{"on", compiler.ErrInvalidJoin},
		{"cue", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
