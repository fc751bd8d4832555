package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
database:
  dsn: postgres://localhost/engine
llm:
  api_key: test-key
`

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "https://api.spider.cloud/crawl", cfg.Spider.Endpoint)
	assert.Equal(t, 20000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, "knowledge", cfg.Ingest.CrawlNamespace)
	assert.Equal(t, "knowledge", cfg.Qdrant.Collection)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 10, cfg.Worker.PoolSize)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.QueueDrainInterval)
	assert.Equal(t, "noop", cfg.Archive.Provider)
	assert.Equal(t, "noop", cfg.Publisher.Provider)
}

func TestLoadOverridesFromFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfigFile(t, minimalConfig+`
server:
  addr: ":9090"
ingest:
  chunk_size: 5000
  chunk_overlap: 100
producers:
  news_seeds:
    - https://example.com/news
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5000, cfg.Ingest.ChunkSize)
	assert.Equal(t, []string{"https://example.com/news"}, cfg.Producers.NewsSeeds)
}

func TestLoadMissingDSN(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfigFile(t, `
llm:
  api_key: test-key
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestLoadMissingLLMKey(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfigFile(t, `
database:
  dsn: postgres://localhost/engine
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")
}

func TestLoadOllamaNeedsNoKey(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfigFile(t, `
database:
  dsn: postgres://localhost/engine
llm:
  provider: ollama
  model: llama3
`))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestValidateChunkOverlapBounds(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfigFile(t, minimalConfig+`
ingest:
  chunk_size: 100
  chunk_overlap: 100
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestValidateProviderRequirements(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfigFile(t, minimalConfig+`
archive:
  provider: gcs
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive.bucket")

	_, err = Load(writeConfigFile(t, minimalConfig+`
publisher:
  provider: pubsub
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher")
}
