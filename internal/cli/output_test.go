package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsql/internal/outcome"
	"github.com/roach88/recsql/internal/testutil"
	"github.com/roach88/recsql/internal/vo"
)

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]string{"result": "done"}))
	var ok CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ok))
	assert.Equal(t, "ok", ok.Status)
	assert.Nil(t, ok.Error)

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeEntity, "unknown entity", map[string]string{"entity": "Ghost"}))
	var fail CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fail))
	assert.Equal(t, "error", fail.Status)
	require.NotNil(t, fail.Error)
	assert.Equal(t, "E202", fail.Error.Code)
	assert.Equal(t, "unknown entity", fail.Error.Message)
	assert.NotNil(t, fail.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("3 entities valid"))
	assert.Equal(t, "3 entities valid\n", buf.String())

	buf.Reset()
	require.NoError(t, f.Error("E203", "request failed", "connection refused"))
	assert.Equal(t, "Error [E203]: request failed\n", buf.String())

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error("E203", "request failed", "connection refused"))
	assert.Contains(t, buf.String(), "Details: connection refused")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}

	f.VerboseLog("loaded %d", 2)
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("loaded %d", 2)
	assert.Equal(t, "loaded 2\n", diag.String())
	assert.Empty(t, out.String())

	f.ErrWriter = nil
	assert.Same(t, out, f.GetErrWriter())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"command", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped", fmt.Errorf("run: %w", NewExitError(ExitCommandError, "x")), ExitCommandError},
		{"outcome", NewExitError(ExitFailure, "NOT_FOUND"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestWrapExitError(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "write failed", inner)
	assert.Equal(t, "write failed: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestReportOutcome(t *testing.T) {
	rec := vo.NewRecord(testutil.PersonSchema()).MustSet("id", 1).MustSet("name", "Alice")

	t.Run("records as json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, reportOutcome(f, outcome.WithRecords([]*vo.Record{rec})))

		var resp struct {
			Status string        `json:"status"`
			Data   OutcomeResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "OK", resp.Data.Status)
		assert.EqualValues(t, 1, resp.Data.Count)
		require.Len(t, resp.Data.Records, 1)
		assert.Equal(t, "Alice", resp.Data.Records[0]["name"])
	})

	t.Run("records as text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, reportOutcome(f, outcome.WithRecords([]*vo.Record{rec})))
		assert.Contains(t, buf.String(), "Alice")
		assert.Contains(t, buf.String(), "1 record(s)")
	})

	t.Run("id as text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, reportOutcome(f, outcome.WithID(int64(6))))
		assert.Equal(t, "OK id=6\n", buf.String())
	})

	t.Run("non-OK exits 1", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		err := reportOutcome(f, outcome.Of(outcome.ChangedTimestamp))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, ErrCodeOutcome, resp.Error.Code)
		assert.Equal(t, "CHANGED_TIMESTAMP", resp.Error.Message)
	})
}
