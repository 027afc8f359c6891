package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRelay_Defaults(t *testing.T) {
	for _, key := range []string{"RELAY_ADDR", "EVENTS_TOPIC", "SNAPSHOT_TTL", "POLL_TIMEOUT", "POLL_IDLE"} {
		t.Setenv(key, "")
	}

	cfg := LoadRelay()
	assert.Equal(t, ":8090", cfg.Addr)
	assert.Equal(t, "dineqr-events", cfg.EventsTopic)
	assert.Equal(t, 5*time.Second, cfg.SnapshotTTL)
	assert.Equal(t, time.Minute, cfg.PollIdle)
}

func TestLoadClient_Overrides(t *testing.T) {
	t.Setenv("SOCKET_URL", "https://relay.dineqr.app")
	t.Setenv("SOCKET_RECONNECT_DELAY", "500ms")
	t.Setenv("SOCKET_DISABLE_POLLING", "true")
	t.Setenv("API_TIMEOUT", "soon")

	cfg := LoadClient()
	assert.Equal(t, "https://relay.dineqr.app", cfg.SocketURL)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.True(t, cfg.DisablePolling)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "k1:9092, k2:9092,")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, brokers())
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DINEQR_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DINEQR_TEST_VALUE") })

	LoadEnv(path)
	assert.Equal(t, "from-file", os.Getenv("DINEQR_TEST_VALUE"))

	LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
}
