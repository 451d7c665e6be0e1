package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: job-notifier
  version: 1.2.0
database:
  postgres:
    host: localhost
    database: jobs
    user: notifier
    password: ${TEST_PG_PASSWORD}
  redis:
    address: localhost:6379
scheduler:
  cron_spec: "0 * * * *"
  concurrency: 4
dispatch:
  email:
    enabled: true
    from_email: jobs@example.com
workers:
  select-job-digest:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "s3cret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", cfg.App.Version)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.CronSpec)
	assert.Equal(t, 4, cfg.Scheduler.Concurrency)
	assert.Equal(t, "bot-token", cfg.Dispatch.Telegram.BotToken)

	// defaults
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, StoreBackendRedis, cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Matching.DigestLimit)
	assert.Equal(t, 0, cfg.Matching.MinBranchTokenLength)
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, ":8080", cfg.Metrics.Address)

	w := cfg.Workers["select-job-digest"]
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  postgres:\n    database: jobs\n    user: u\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "redis backend without address",
			body:    "database:\n  postgres:\n    host: h\n    database: jobs\n    user: u\n",
			wantErr: "database.redis.address is required",
		},
		{
			name:    "unknown store backend",
			body:    "database:\n  postgres:\n    host: h\n    database: jobs\n    user: u\nstore:\n  backend: etcd\n",
			wantErr: "store.backend must be",
		},
		{
			name:    "camunda enabled without broker",
			body:    "database:\n  postgres:\n    host: h\n    database: jobs\n    user: u\nstore:\n  backend: memory\ncamunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "email without sender",
			body:    "database:\n  postgres:\n    host: h\n    database: jobs\n    user: u\nstore:\n  backend: memory\ndispatch:\n  email:\n    enabled: true\n",
			wantErr: "dispatch.email.from_email is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestWorkerHelpers(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"send-job-digest": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "send-job-digest"))
	assert.True(t, IsWorkerEnabled(cfg, "select-job-digest"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "send-job-digest").MaxJobsActive)
	assert.Equal(t, 5, GetWorkerConfig(cfg, "select-job-digest").MaxJobsActive)
}
