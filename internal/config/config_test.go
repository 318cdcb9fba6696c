package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardarena/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory with no home config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaultsAndEnv(t *testing.T) {
	isolate(t)
	t.Setenv("ARENA_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("ARENA_GAME_INITIAL_HP", "50")
	t.Setenv("ARENA_QUEUE_COUNTDOWN", "2s")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "jwt", cfg.Auth.CookieName)
	assert.Equal(t, 50, cfg.Game.InitialHP)
	assert.Equal(t, 3, cfg.Game.InitialCoins)
	assert.Equal(t, 30*time.Second, cfg.Game.TurnTimeLimit)
	assert.Equal(t, 2*time.Second, cfg.Queue.Countdown)
	assert.Empty(t, cfg.Postgres.DSN, "no dsn means memory mode")
	assert.Equal(t, 50, cfg.Match().InitialHP)
}

func TestConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "arena.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[auth]
jwt_secret = "from-file"

[game]
coins_per_round = 5
turn_time_limit = "10s"

[postgres]
dsn = "postgres://arena@localhost/arena"
`), 0o600))

	t.Setenv("ARENA_GAME_COINS_PER_ROUND", "7")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 7, cfg.Game.CoinsPerRound, "env beats file")
	assert.Equal(t, 10*time.Second, cfg.Game.TurnTimeLimit)
	assert.Equal(t, "postgres://arena@localhost/arena", cfg.Postgres.DSN)
}

func TestDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ARENA_AUTH_JWT_SECRET=dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ARENA_AUTH_JWT_SECRET") })

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv", cfg.Auth.JWTSecret)
}

func TestValidation(t *testing.T) {
	isolate(t)
	t.Setenv("ARENA_GAME_INITIAL_HP", "0")
	t.Setenv("ARENA_QUEUE_COUNTDOWN", "0s")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial hp")
	assert.Contains(t, err.Error(), "queue.countdown")
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := config.Load("/nonexistent/arena.toml")
	assert.Error(t, err)
}
