package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"cardarena/internal/auth"
	"cardarena/internal/config"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("ARENA_AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("ARENA_POSTGRES_DSN", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "alice", "--ttl", "1m")
	require.NoError(t, err)

	name, err := auth.NewVerifier("cli-secret", "").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestMigrateNeedsDSN(t *testing.T) {
	_, err := run(t, "migrate", "up")
	assert.ErrorContains(t, err, "postgres.dsn")

	_, err = run(t, "migrate", "sideways")
	assert.Error(t, err)
}

func TestDropCatalogCacheIsBestEffort(t *testing.T) {
	var logs bytes.Buffer
	a := &app{
		cfg: &config.Config{},
		log: hclog.New(&hclog.LoggerOptions{Output: &logs}),
	}
	require.NoError(t, a.dropCatalogCache(context.Background()), "no redis configured")
	assert.Empty(t, logs.String())

	a.cfg.Redis.Addr = "127.0.0.1:1"
	require.NoError(t, a.dropCatalogCache(context.Background()), "unreachable redis only warns")
	assert.Contains(t, logs.String(), "catalog cache not cleared")
}
