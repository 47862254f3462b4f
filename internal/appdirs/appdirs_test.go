package appdirs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureConfigDirUsesPrivatePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not portable on windows")
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv(ConfigDirEnv, "")

	dir, err := EnsureConfigDir()
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o077, "expected private config dir permissions, got %o", info.Mode().Perm())
	assert.Equal(t, AppName, filepath.Base(dir))
}

func TestEnsureStateDirUsesPrivatePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not portable on windows")
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv(StateDirEnv, "")

	dir, err := EnsureStateDir()
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o077, "expected private state dir permissions, got %o", info.Mode().Perm())
}

func TestPinnedDirectoriesOverridePlatformDefaults(t *testing.T) {
	cfgDir := filepath.Join(t.TempDir(), "cfg")
	stateDir := filepath.Join(t.TempDir(), "state")
	t.Setenv(ConfigDirEnv, cfgDir)
	t.Setenv(StateDirEnv, stateDir)

	gotCfg, err := ConfigFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfgDir, "config.toml"), gotCfg)

	gotState, err := StateFilePath("audit.jsonl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stateDir, "audit.jsonl"), gotState)
}
