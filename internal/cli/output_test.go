package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"id": "t1"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"id": "t1"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeNotFound, "guest g9: not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "guest g9: not found", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeRemote, "remote rejected the write", "SYNC_DISABLED"))
			assert.Contains(t, buf.String(), "Error [E_REMOTE]: remote rejected the write")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: SYNC_DISABLED")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("sync state: %s", "local-only")
	assert.Empty(t, out.String())
	assert.Equal(t, "sync state: local-only\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("dropped")
	assert.NotContains(t, errOut.String(), "dropped")
}

func TestOutputFormatter_Table(t *testing.T) {
	headers := []string{"id", "name", "rsvp"}
	rows := [][]string{
		{"g1", "Lucía", "confirmado"},
		{"g2", "Mateo"},
	}

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Table(nil, headers, rows))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, strings.ToLower(lines[0]), "rsvp")
		assert.Contains(t, lines[1], "Lucía")
		assert.Contains(t, lines[2], "Mateo")
		assert.NotContains(t, buf.String(), "╭", "no box when not writing to a terminal")
	})

	t.Run("empty", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Table(nil, headers, nil))
		assert.Equal(t, "(empty)\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Table([]string{"g1", "g2"}, headers, rows))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, []any{"g1", "g2"}, resp.Data)
	})
}

func TestRenderTableTerminal(t *testing.T) {
	out := renderTable([]string{"id"}, [][]string{{"t1"}}, true)
	assert.Contains(t, out, "╭")
	assert.Contains(t, out, "t1")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad args")))

	wrapped := fmt.Errorf("run: %w", WrapExitError(ExitCommandError, "load config", errors.New("missing")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "run: load config: missing", wrapped.Error())
}
