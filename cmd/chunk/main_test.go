package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"docqa/internal/chunker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("One two three. Four five six. Seven eight nine."), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"--config", filepath.Join(dir, "missing.yml"),
		"--tokenizer", "words",
		"--max", "6",
		"--overlap", "3",
		"--json",
		path,
	})
	require.NoError(t, rootCmd.Execute())

	var got []chunkOutput
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var c chunkOutput
		require.NoError(t, json.Unmarshal(sc.Bytes(), &c))
		got = append(got, c)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "One two three. Four five six.", got[0].Text)
	assert.Equal(t, "Four five six. Seven eight nine.", got[1].Text)
	assert.Equal(t, 1, got[1].ChunkID)
	assert.Equal(t, 6, got[1].TokenCount)
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, got[0].Source)
}

func TestRunChunk_InvalidFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("One two three."), 0o644))

	cases := map[string][]string{
		"negative overlap": {"--overlap", "-5"},
		"zero max":         {"--max", "0", "--overlap", "0"},
	}
	for name, flags := range cases {
		t.Run(name, func(t *testing.T) {
			rootCmd.SetOut(io.Discard)
			args := append([]string{"--config", filepath.Join(dir, "missing.yml"), "--tokenizer", "words"}, flags...)
			rootCmd.SetArgs(append(args, path))
			err := rootCmd.Execute()
			assert.ErrorIs(t, err, chunker.ErrInvalidConfig)
		})
	}
}
