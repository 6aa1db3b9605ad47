package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, env, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "./data/queries", cfg.QueriesDir)
	assert.Equal(t, ReleaseMode, env)
	assert.False(t, cfg.CheckTableAccess)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listenAddr": ":9000",
		"dsn": "postgres://localhost/warehouse",
		"accessDir": "/etc/sqlplan",
		"limit": 200
	}`), 0o644))

	t.Setenv("SQLPLAN_LIMIT", "25")
	t.Setenv("SQLPLAN_CHECK_TABLE_ACCESS", "true")
	t.Setenv("SQLPLAN_MAX_FILTER_DEPTH", "10")
	t.Setenv("SQLPLAN_QUERY_TIMEOUT", "45s")
	t.Setenv("ENVIRONMENT", DebugMode)

	cfg, env, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "pgx", cfg.Driver)
	assert.Equal(t, "/etc/sqlplan", cfg.AccessDir)
	assert.Equal(t, int64(25), cfg.Limit)
	assert.Equal(t, 10, cfg.MaxFilterDepth)
	assert.True(t, cfg.CheckTableAccess)
	assert.Equal(t, "45s", cfg.QueryTimeout)
	assert.Equal(t, DebugMode, env)
}

func TestLoadConfigErrors(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	t.Setenv("SQLPLAN_LIMIT", "lots")
	_, _, err = loadConfig("")
	require.Error(t, err)
}
