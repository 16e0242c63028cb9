package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(StatsResult{StoreRows: 3}))

	var resp struct {
		Status string      `json:"status"`
		Data   StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.StoreRows)
}

func TestOutputFormatter_JSONErrorKeepsCode(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := WrapExitError(ExitCommandError, ErrCodeManifest, "failed to load manifest", errors.New("no such file"))
	require.NoError(t, formatter.Error(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeManifest, resp.Error.Code)
	assert.Equal(t, "failed to load manifest: no such file", resp.Error.Message)
}

func TestOutputFormatter_TextRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(ResolveResult{Component: "a/.B", Title: "B", Default: true}))
	assert.Contains(t, buf.String(), "a/.B (user 0)")
	assert.Contains(t, buf.String(), "icon:    default")
}

func TestOutputFormatter_TextFallsBackToPrintln(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("rebuilt"))
	assert.Equal(t, "rebuilt\n", buf.String())
}

func TestOutputFormatter_TextErrorDefaultsToOperation(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(errors.New("boom")))
	assert.Equal(t, "Error [E005]: boom\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, ErrCodeConfig, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
