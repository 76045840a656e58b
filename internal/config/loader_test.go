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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
database:
  user: flodrama
  dbname: flodrama
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "http://localhost:9200", cfg.Search.URL)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.CycleInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Scheduler.RefreshAfter)
	assert.Equal(t, int64(1000), cfg.Scheduler.BacklogWarnSize)
	assert.Equal(t, 200, cfg.Crawl.MinItems)
	assert.Equal(t, 0.8, cfg.NLP.EntityConfidence)
	assert.Equal(t, 6*time.Hour, cfg.NLP.PopularityMaxAge)
	assert.Equal(t, "sources.yml", cfg.SourcesFile)
}

func TestLoadReadsFileValues(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
database:
  user: flodrama
  dbname: flodrama
scheduler:
  cycle_interval: 90s
crawl:
  min_items: 50
`))
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Scheduler.CycleInterval)
	assert.Equal(t, 50, cfg.Crawl.MinItems)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("MIN_ITEMS_PER_SOURCE", "75")

	cfg, err := Load(writeConfigFile(t, `
database:
  host: from-file
  user: flodrama
  dbname: flodrama
`))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Address)
	assert.Equal(t, 75, cfg.Crawl.MinItems)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DB_USER", "flodrama")
	t.Setenv("DB_NAME", "flodrama")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestLoadRejectsMissingDatabaseSettings(t *testing.T) {
	_, err := Load(writeConfigFile(t, `
redis:
  address: localhost:6379
`))
	assert.ErrorContains(t, err, "database user and dbname are required")
}

func TestLoadRejectsBadConfidence(t *testing.T) {
	_, err := Load(writeConfigFile(t, `
database:
  user: flodrama
  dbname: flodrama
nlp:
  entity_confidence: 1.5
`))
	assert.ErrorContains(t, err, "entity_confidence")
}
