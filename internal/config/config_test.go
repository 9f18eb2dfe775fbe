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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.GetAddr())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 7, cfg.Game.HandSize)
	assert.Equal(t, 2*time.Hour, cfg.Game.StaleRoomTimeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("HAND_SIZE", "10")
	t.Setenv("STORE_TIMEOUT", "500ms")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 10, cfg.Game.HandSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Store.Timeout)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nMAX_MEMBERS=6\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("MAX_MEMBERS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 6, cfg.Game.MaxMembers)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE", "postgres")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "POSTGRES_URL")

	t.Setenv("STORE", "redis")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown STORE")

	t.Setenv("STORE", "memory")
	t.Setenv("HAND_SIZE", "0")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "HAND_SIZE")
}
