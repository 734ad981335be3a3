package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/cuemby/blockcat/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "databaseEngine: sqlite::memory:\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultGracePeriodSeconds, cfg.GracePeriodSeconds)
	assert.Equal(t, DefaultBlockCommitIntervalSeconds, cfg.BlockCommitIntervalSeconds)
	assert.Equal(t, DefaultLockTimeoutSeconds, cfg.LockTimeoutSeconds)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
databaseEngine: sqlite::memory:
gracePeriodSeconds: 120
blockCommitIntervalSeconds: 5
lockTimeoutSeconds: 30
logLevel: debug
logJSON: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.GracePeriodSeconds)
	assert.Equal(t, 5, cfg.BlockCommitIntervalSeconds)
	assert.Equal(t, 30, cfg.LockTimeoutSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestLoadRequiresDatabaseEngine(t *testing.T) {
	path := writeConfig(t, "logLevel: debug\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, catalogerr.InputData, catalogerr.KindOf(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, catalogerr.InputData, catalogerr.KindOf(err))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "databaseEngine: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, catalogerr.InputData, catalogerr.KindOf(err))
}

func TestLogConfigTranslatesFields(t *testing.T) {
	cfg := &Config{LogLevel: "warn", LogJSON: true}
	lc := cfg.LogConfig()
	assert.Equal(t, log.Level("warn"), lc.Level)
	assert.True(t, lc.JSONOutput)
}
