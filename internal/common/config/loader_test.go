package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: hazard-test\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "hazard-test", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/metrics", cfg.Server.MetricsPath)
	assert.Equal(t, 64, cfg.Pool.QueueSize)
	assert.Equal(t, 30000, cfg.Pool.ComputeTimeout)
	assert.Equal(t, []string{"98.26.65.16"}, cfg.Access.Blocklist)
	assert.Equal(t, "memory", cfg.Access.Store)
	assert.False(t, cfg.Models.RegionOverride)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("HAZARD_TEST_REDIS", "redis.internal:6379")
	path := writeConfig(t, `
access:
  enabled: true
  store: redis
database:
  redis:
    address: "${HAZARD_TEST_REDIS}"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", cfg.Database.Redis.Address)
	assert.True(t, cfg.Access.Enabled)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "redis store without address",
			body: "access:\n  store: redis\n",
			want: "database.redis.address",
		},
		{
			name: "postgres store without host",
			body: "access:\n  store: postgres\n",
			want: "database.postgres.host",
		},
		{
			name: "unknown store",
			body: "access:\n  store: etcd\n",
			want: "access.store",
		},
		{
			name: "negative pool size",
			body: "pool:\n  size: -2\n",
			want: "pool.size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}

func TestServerAddress(t *testing.T) {
	assert.Equal(t, "0.0.0.0:9090", ServerConfig{Host: "0.0.0.0", Port: 9090}.Address())
}
