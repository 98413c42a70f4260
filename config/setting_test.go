package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { Cfg = defaultConfig })

	t.Run("ShouldKeepDefaultsWhenFileMissing", func(t *testing.T) {
		err := Init(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 256, Cfg.Chunking.MinChunkSize)
		assert.Equal(t, 512, Cfg.Chunking.MaxChunkSize)
		assert.Equal(t, 50, Cfg.Chunking.ChunkOverlap)
		assert.Equal(t, 3, Cfg.Retrieval.TopK)
		assert.Contains(t, Cfg.Dns, "@tcp(127.0.0.1:3306)/docqa")
	})

	t.Run("ShouldLayerFileThenEnv", func(t *testing.T) {
		path := writeConfig(t, `
chunking:
  max_chunk_size: 300
  chunk_overlap: 20
retrieval:
  top_k: 5
`)
		t.Setenv("APP_CHUNKING__CHUNK_OVERLAP", "10")
		err := Init(path)
		require.NoError(t, err)
		assert.Equal(t, 300, Cfg.Chunking.MaxChunkSize)
		assert.Equal(t, 10, Cfg.Chunking.ChunkOverlap)
		assert.Equal(t, 5, Cfg.Retrieval.TopK)
	})

	t.Run("ShouldRejectInvalidChunking", func(t *testing.T) {
		Cfg = defaultConfig
		path := writeConfig(t, `
chunking:
  max_chunk_size: 0
`)
		err := Init(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MaxChunkSize")
		assert.Equal(t, 512, Cfg.Chunking.MaxChunkSize)
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "chunking.max_chunk_size", envKey("APP_CHUNKING__MAX_CHUNK_SIZE"))
	assert.Equal(t, "log_level", envKey("APP_LOG_LEVEL"))
}
