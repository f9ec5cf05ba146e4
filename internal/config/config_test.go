package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 5334, cfg.Server.Port)
	assert.Equal(t, "60s", cfg.Scheduler.TickInterval)
	assert.Equal(t, "1h", cfg.Scheduler.RunInterval)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, 20, cfg.Scheduler.DefaultDailyLimit)
	assert.Equal(t, "10s", cfg.Scheduler.Pacing.Reddit)
	assert.Equal(t, "15s", cfg.Scheduler.Pacing.Twitter)
	assert.Equal(t, 300, cfg.Gemini.MaxMessageLength)
	assert.Equal(t, "outreach.events", cfg.Notify.AMQP.Exchange)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Scheduler: SchedulerConfig{Workers: 9, RunInterval: "30m"},
		Gemini:    GeminiConfig{MaxMessageLength: 500},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, 9, cfg.Scheduler.Workers)
	assert.Equal(t, "30m", cfg.Scheduler.RunInterval)
	assert.Equal(t, 500, cfg.Gemini.MaxMessageLength)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, Duration("nonsense", 5*time.Second))
	assert.Equal(t, 5*time.Second, Duration("-1s", 5*time.Second))
	assert.Equal(t, 90*time.Minute, Duration("90m", time.Second))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	content := `
database:
  password: s3cret
scheduler:
  enabled: true
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 2, cfg.Scheduler.Workers)
	assert.Equal(t, "postgres", cfg.Database.Type)
}
