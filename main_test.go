package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	env := "LOG_LEVEL=error\nPALETTE_FILE=" + filepath.Join(dir, "palette.yaml") + "\n"
	require.NoError(t, os.WriteFile(envFile, []byte(env), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--env-file", envFile))
	err := cmd.Execute()
	return out.String(), err
}

func writeMessage(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "message.md")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestParseCommand(t *testing.T) {
	path := writeMessage(t, "# Title\n\nbody<!-- ACTION: {\"a\":1} -->")

	out, err := runCLI(t, "", "parse", path)
	require.NoError(t, err)

	var got struct {
		Blocks []struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		} `json:"blocks"`
		Metadata []struct {
			Keyword string `json:"keyword"`
		} `json:"metadata"`
		Length int `json:"length"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Len(t, got.Blocks, 2)
	assert.Equal(t, "heading", got.Blocks[0].Type)
	assert.Equal(t, "body", got.Blocks[1].Content)
	require.Len(t, got.Metadata, 1)
	assert.Equal(t, "ACTION", got.Metadata[0].Keyword)
	assert.Equal(t, 10, got.Length)
}

func TestParseCommandReadsStdin(t *testing.T) {
	out, err := runCLI(t, "---", "parse", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"type": "divider"`)
}

func TestReplayCommand(t *testing.T) {
	path := writeMessage(t, "one\n\n\ntwo")

	out, err := runCLI(t, "", "replay", path, "--chunk", "4")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "0\t\"one\\n\"\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1\t\"\\n\\ntw\"\t"), lines[1])
	assert.Contains(t, out, `"content": "two"`)

	_, err = runCLI(t, "", "replay", path, "--chunk", "0")
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	path := writeMessage(t, "Hello **world**")
	highlights := filepath.Join(t.TempDir(), "highlights.json")
	require.NoError(t, os.WriteFile(highlights, []byte(`[{"id":"h1","text":"Hello","color":"pink","startIndex":0,"endIndex":5}]`), 0o644))

	out, err := runCLI(t, "", "render", path, "--highlights", highlights)
	require.NoError(t, err)
	assert.Contains(t, out, `data-highlight-id="h1"`)
	assert.Contains(t, out, "<strong>world</strong>")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "blockstream v"+Version))
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "", "frobnicate")
	assert.Error(t, err)
}
