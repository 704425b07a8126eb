package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.QueryInterval)
	assert.Equal(t, 15*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, 3*time.Second, cfg.EditTimeout)
	assert.Equal(t, "sqlite", cfg.DBConnection)
	assert.Equal(t, 1000, cfg.MetricsRecordLimit)
	assert.Equal(t, AdvertiseServerCount, cfg.AdvertiseType)
	assert.False(t, cfg.WebAPIEnable)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("APP_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadClampsQueryInterval(t *testing.T) {
	t.Setenv("APP_TOKEN", "token")
	t.Setenv("TASK_QUERY_SERVER", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.QueryInterval)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("APP_TOKEN", "token")
	t.Setenv("DB_CONNECTION", "mongodb")

	_, err := Load()
	assert.Error(t, err)
}

func TestVariablesRegistryCoversEndpointContract(t *testing.T) {
	names := make(map[string]bool, len(Variables))
	for _, v := range Variables {
		names[v.Name] = true
	}

	for _, required := range []string{
		"APP_TOKEN", "WHITELIST_GUILDS", "TASK_QUERY_SERVER",
		"TASK_QUERY_CHUNK_SIZE", "DB_CONNECTION", "METRICS_RECORD_LIMIT",
		"WEB_API_ENABLE", "HEROKU_APP_NAME", "FACTORIO_TOKEN",
	} {
		assert.True(t, names[required], required)
	}
}
