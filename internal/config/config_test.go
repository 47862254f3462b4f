package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	cfg := Default()

	tests := map[string]string{
		"resolver":                "suggest",
		"model.hidden_size":       "768",
		"index.backend":           "sqlite",
		"index.top_k":             "5",
		"index.retry_max":         "2",
		"index.table":             "public.commands",
		"suggest.timeout_seconds": "12",
		"ui.backend":              "huh",
		"audit.enabled":           "false",
		"server.listen":           "0.0.0.0:9000",
	}
	for key, value := range tests {
		require.NoError(t, cfg.Set(key, value), "set %s", key)
	}
	for key, want := range tests {
		got, err := cfg.Get(key)
		require.NoError(t, err, "get %s", key)
		assert.Equal(t, want, got, key)
	}
}

func TestSetRejectsInvalidValues(t *testing.T) {
	tests := map[string]struct {
		key   string
		value string
	}{
		"zero-top-k":        {key: "index.top_k", value: "0"},
		"negative-retries":  {key: "index.retry_max", value: "-1"},
		"unknown-backend":   {key: "index.backend", value: "faiss"},
		"unknown-resolver":  {key: "resolver", value: "magic"},
		"bad-ui":            {key: "ui.backend", value: "neon-ui"},
		"bad-table":         {key: "index.table", value: "commands; drop table x"},
		"bad-bool":          {key: "audit.enabled", value: "sometimes"},
		"unknown-key":       {key: "index.api_key", value: "secret"},
		"zero-hidden-size":  {key: "model.hidden_size", value: "0"},
		"empty-listen-addr": {key: "server.listen", value: " "},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, cfg.Set(tt.key, tt.value))
		})
	}
}

func TestDefaultsPreserveOriginalContract(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ResolverRetrieval, cfg.Resolver)
	assert.Equal(t, BackendPinecone, cfg.Index.Backend)
	assert.Equal(t, 1, cfg.Index.TopK)
	assert.Equal(t, 0, cfg.Index.RetryMax, "retrieval must not retry unless an operator opts in")
	assert.Equal(t, 384, cfg.Model.HiddenSize)
	assert.Equal(t, "plain", cfg.UI.Backend)
	assert.Equal(t, filepath.Join("onnx_model", "model.onnx"), cfg.ModelPath())
	assert.Equal(t, filepath.Join("onnx_model", "tokenizer.json"), cfg.TokenizerPath())
}

func TestApplyEnvOverlaysSecrets(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		EnvPineconeAPIKey:   " key-123 ",
		EnvPineconeIndexURL: "https://idx.example/query",
		EnvSuggestURL:       "",
	}))

	assert.Equal(t, "key-123", cfg.Index.APIKey)
	assert.Equal(t, "https://idx.example/query", cfg.Index.URL)
	assert.Equal(t, Default().Suggest.URL, cfg.Suggest.URL, "empty env value must not clear the file setting")
}

func TestValidateFailsFastOnMissingPineconeSettings(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingSetting))
	assert.Contains(t, err.Error(), EnvPineconeAPIKey)
	assert.Contains(t, err.Error(), EnvPineconeIndexURL)

	cfg.ApplyEnv(envMap(map[string]string{
		EnvPineconeAPIKey:   "key",
		EnvPineconeIndexURL: "https://idx.example/query",
	}))
	assert.NoError(t, cfg.Validate())
}

func TestValidatePerBackend(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Config)
		wantErr bool
	}{
		"pgvector-missing-dsn": {
			mutate:  func(c *Config) { c.Index.Backend = BackendPGVector },
			wantErr: true,
		},
		"pgvector-ok": {
			mutate: func(c *Config) {
				c.Index.Backend = BackendPGVector
				c.Index.PostgresDSN = "postgres://localhost/commands"
			},
		},
		"sqlite-missing-path": {
			mutate:  func(c *Config) { c.Index.Backend = BackendSQLite },
			wantErr: true,
		},
		"sqlite-ok": {
			mutate: func(c *Config) {
				c.Index.Backend = BackendSQLite
				c.Index.SQLitePath = "/tmp/commands.db"
			},
		},
		"suggest-needs-no-index": {
			mutate: func(c *Config) { c.Resolver = ResolverSuggest },
		},
		"suggest-missing-url": {
			mutate: func(c *Config) {
				c.Resolver = ResolverSuggest
				c.Suggest.URL = ""
			},
			wantErr: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveNeverPersistsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Index.APIKey = "super-secret"
	cfg.Index.PostgresDSN = "postgres://user:pw@host/db"

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret")
	assert.NotContains(t, string(raw), "user:pw")

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Index.APIKey)
	assert.Equal(t, cfg.Index.TopK, loaded.Index.TopK)
}

func TestLoadFileNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[index]\ntop_k = 0\nbackend = \"SQLite\"\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Index.TopK)
	assert.Equal(t, BackendSQLite, cfg.Index.Backend)
	assert.Equal(t, 384, cfg.Model.HiddenSize)
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	t.Setenv("SYNTAXPILOT_CONFIG_DIR", t.TempDir())
	t.Setenv(EnvPineconeAPIKey, "from-env")

	cfg, path, err := LoadOrCreate()
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "from-env", cfg.Index.APIKey)
}

func TestLoadDotEnvDoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SYNTAXPILOT_TEST_A=file\nSYNTAXPILOT_TEST_B=file\n"), 0o600))

	t.Setenv("SYNTAXPILOT_TEST_A", "process")
	t.Setenv("SYNTAXPILOT_TEST_B", "")
	require.NoError(t, os.Unsetenv("SYNTAXPILOT_TEST_B"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "process", os.Getenv("SYNTAXPILOT_TEST_A"))
	assert.Equal(t, "file", os.Getenv("SYNTAXPILOT_TEST_B"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestSaveUsesPrivateFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not portable on windows")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(path, Default()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o077, "expected private permissions, got %o", info.Mode().Perm())
}

func TestSaveAtomicWriteProducesParseableConfigUnderConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			cfg := Default()
			if idx%2 == 0 {
				cfg.Index.Backend = BackendPGVector
			} else {
				cfg.Index.Backend = BackendSQLite
			}
			if err := Save(path, cfg); err != nil {
				t.Errorf("save failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	bytes, err := os.ReadFile(path)
	require.NoError(t, err)
	var parsed Config
	assert.NoError(t, toml.Unmarshal(bytes, &parsed), "content:\n%s", string(bytes))
}
