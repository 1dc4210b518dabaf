package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.Store.Backend)
	require.Equal(t, "stash.json", cfg.Store.StashFile)
	require.Equal(t, "directory-entry-changes", cfg.Kafka.Topics.EntryChanges)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9100
store:
  dataDir: /var/lib/directory
  backend: postgres
capability:
  secret: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("SP_CAPABILITY_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "/var/lib/directory", cfg.Store.DataDir)
	require.Equal(t, BackendPostgres, cfg.Store.Backend)
	require.Equal(t, "from-env", cfg.Capability.Secret)
	// Unset keys keep their defaults.
	require.Equal(t, "entries.sqlite", cfg.Store.LogFile)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("SP_STORE_BACKEND", "leveldb")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
