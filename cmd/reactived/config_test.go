package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxsml/reactive/broker"
	"github.com/fxsml/reactive/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", config.Loader{Prefix: "REACTIVE_TEST_UNSET"})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []topicConfig{
		{Name: "tasks/status", Capacity: 16},
		{Name: "logs/events", Capacity: 256},
	}, cfg.Topics)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactived.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
auto_create_capacity: 8
broker:
  mailbox_size: 64
  overflow: reject
  pool:
    max_workers: 16
bridge:
  write_timeout: 2s
topics:
  - name: builds
    capacity: 4
`), 0o600))

	t.Setenv("REACTIVE_DAEMON_LISTEN", ":9100")
	t.Setenv("REACTIVE_DAEMON_BROKER_POOL_MAX_WORKERS", "32")

	cfg, err := loadConfig(path, config.Loader{})
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, 8, cfg.AutoCreateCapacity)
	assert.Equal(t, 64, cfg.Broker.MailboxSize)
	assert.Equal(t, broker.OverflowReject, cfg.Broker.Overflow)
	assert.Equal(t, 32, cfg.Broker.Pool.MaxWorkers)
	assert.Equal(t, 2*time.Second, cfg.Bridge.WriteTimeout)
	assert.Equal(t, []topicConfig{{Name: "builds", Capacity: 4}}, cfg.Topics)
}

func TestLoadConfig_InvalidTopics(t *testing.T) {
	tests := map[string]string{
		"missing name":      "topics:\n  - capacity: 1\n",
		"negative capacity": "topics:\n  - name: x\n    capacity: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "reactived.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := loadConfig(path, config.Loader{Prefix: "REACTIVE_TEST_UNSET"})
			assert.Error(t, err)
		})
	}
}
