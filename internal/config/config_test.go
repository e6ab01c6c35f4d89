package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Minute, cfg.RoomTTL)
	assert.Equal(t, 6, cfg.GuessLimit)
	assert.Equal(t, 3, cfg.QueueRetryAttempts)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ROOM_TTL", "45m")
	t.Setenv("GUESS_LIMIT", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, 45*time.Minute, cfg.RoomTTL)
	assert.Equal(t, 8, cfg.GuessLimit)
}

func TestYAMLThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wuzzle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"redis_addr: yaml-redis:6379\nguess_limit: 10\n"), 0o600))
	t.Setenv("WUZZLE_CONFIG", path)
	t.Setenv("GUESS_LIMIT", "7")

	cfg, err := Load()
	require.NoError(t, err)

	// YAML wins over defaults, env wins over YAML.
	assert.Equal(t, "yaml-redis:6379", cfg.RedisAddr)
	assert.Equal(t, 7, cfg.GuessLimit)
}

func TestInvalidValuesRejected(t *testing.T) {
	t.Setenv("ROOM_TTL", "-5m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_TTL")
}

func TestMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("GUESS_LIMIT", "six")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.GuessLimit)
}
