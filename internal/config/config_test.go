package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/stallpulse")
	t.Setenv("SESSION_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 50, cfg.MaxClientsPerChannel)
	assert.Equal(t, int64(1000), cfg.MaxStreamConnections)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "test-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_MissingSessionSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/stallpulse")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestLoad_HeartbeatInterval(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HEARTBEAT_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
}

func TestLoad_InvalidHeartbeatInterval(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HEARTBEAT_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEARTBEAT_INTERVAL")
}

func TestLoad_NegativeHeartbeatInterval(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HEARTBEAT_INTERVAL", "-5s")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidInt(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_CLIENTS_PER_CHANNEL", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_CLIENTS_PER_CHANNEL")
}
