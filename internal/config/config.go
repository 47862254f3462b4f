package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashwch/syntaxpilot/internal/appdirs"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables that carry secrets and endpoints. They are never
// written back to config.toml.
const (
	EnvPineconeAPIKey   = "PINECONE_API_KEY"
	EnvPineconeIndexURL = "PINECONE_INDEX_URL"
	EnvPostgresDSN      = "SYNTAXPILOT_PG_DSN"
	EnvSQLitePath       = "SYNTAXPILOT_SQLITE_PATH"
	EnvSuggestURL       = "SYNTAXPILOT_SUGGEST_URL"
)

const (
	ResolverRetrieval = "retrieval"
	ResolverSuggest   = "suggest"

	BackendPinecone = "pinecone"
	BackendPGVector = "pgvector"
	BackendSQLite   = "sqlite"
)

// ErrMissingSetting marks a required setting that is absent at startup.
var ErrMissingSetting = errors.New("missing required setting")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type ModelConfig struct {
	Dir            string `toml:"dir" json:"dir"`
	ModelFile      string `toml:"model_file" json:"model_file"`
	TokenizerFile  string `toml:"tokenizer_file" json:"tokenizer_file"`
	RuntimeLibrary string `toml:"runtime_library,omitempty" json:"runtime_library,omitempty"`
	OutputName     string `toml:"output_name" json:"output_name"`
	HiddenSize     int    `toml:"hidden_size" json:"hidden_size"`
}

type IndexConfig struct {
	Backend        string `toml:"backend" json:"backend"`
	TopK           int    `toml:"top_k" json:"top_k"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
	RetryMax       int    `toml:"retry_max" json:"retry_max"`
	Namespace      string `toml:"namespace,omitempty" json:"namespace,omitempty"`
	Table          string `toml:"table" json:"table"`
	SQLitePath     string `toml:"sqlite_path,omitempty" json:"sqlite_path,omitempty"`

	APIKey      string `toml:"-" json:"-"`
	URL         string `toml:"-" json:"url,omitempty"`
	PostgresDSN string `toml:"-" json:"-"`
}

type SuggestConfig struct {
	URL            string `toml:"url" json:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

type UIConfig struct {
	Backend string `toml:"backend" json:"backend"`
}

type AuditConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

type ServerConfig struct {
	Listen         string   `toml:"listen" json:"listen"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`
}

type Config struct {
	Version  int           `toml:"version" json:"version"`
	Resolver string        `toml:"resolver" json:"resolver"`
	Model    ModelConfig   `toml:"model" json:"model"`
	Index    IndexConfig   `toml:"index" json:"index"`
	Suggest  SuggestConfig `toml:"suggest" json:"suggest"`
	UI       UIConfig      `toml:"ui" json:"ui"`
	Audit    AuditConfig   `toml:"audit" json:"audit"`
	Server   ServerConfig  `toml:"server" json:"server"`
}

func Default() Config {
	return Config{
		Version:  1,
		Resolver: ResolverRetrieval,
		Model: ModelConfig{
			Dir:           "onnx_model",
			ModelFile:     "model.onnx",
			TokenizerFile: "tokenizer.json",
			OutputName:    "last_hidden_state",
			HiddenSize:    384,
		},
		Index: IndexConfig{
			Backend:        BackendPinecone,
			TopK:           1,
			TimeoutSeconds: 15,
			RetryMax:       0,
			Table:          "commands",
		},
		Suggest: SuggestConfig{
			URL:            "http://127.0.0.1:8000/suggest",
			TimeoutSeconds: 30,
		},
		UI:    UIConfig{Backend: "plain"},
		Audit: AuditConfig{Enabled: true},
		Server: ServerConfig{
			Listen: "127.0.0.1:8000",
		},
	}
}

// LoadOrCreate reads config.toml (writing defaults on first run) and then
// overlays the process environment.
func LoadOrCreate() (Config, string, error) {
	path, err := appdirs.ConfigFilePath()
	if err != nil {
		return Config{}, "", err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, "", err
		}
		cfg.ApplyEnv(os.LookupEnv)
		return cfg, path, nil
	} else if err != nil {
		return Config{}, "", fmt.Errorf("could not stat config path: %w", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, "", err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, path, nil
}

// LoadFile parses a config file without consulting the environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config file: %w", err)
	}
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not parse config file: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg Config) error {
	cfg.normalize()
	payload, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create config dir: %w", err)
	}
	tempFile, err := os.CreateTemp(dir, ".syntaxpilot-config-*.toml")
	if err != nil {
		return fmt.Errorf("could not create temp config file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := func() {
		_ = os.Remove(tempPath)
	}

	if _, err := tempFile.Write(payload); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("could not write temp config file: %w", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("could not secure temp config file permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return fmt.Errorf("could not close temp config file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		cleanup()
		return fmt.Errorf("could not atomically replace config file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("could not secure config file permissions: %w", err)
	}
	return nil
}

// ApplyEnv overlays secrets and endpoints from lookup (os.LookupEnv in
// production). Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(name string) string {
		v, ok := lookup(name)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}
	if v := get(EnvPineconeAPIKey); v != "" {
		c.Index.APIKey = v
	}
	if v := get(EnvPineconeIndexURL); v != "" {
		c.Index.URL = v
	}
	if v := get(EnvPostgresDSN); v != "" {
		c.Index.PostgresDSN = v
	}
	if v := get(EnvSQLitePath); v != "" {
		c.Index.SQLitePath = v
	}
	if v := get(EnvSuggestURL); v != "" {
		c.Suggest.URL = v
	}
}

// Validate reports every required setting the selected resolver and index
// backend need but do not have. All problems wrap ErrMissingSetting.
func (c Config) Validate() error {
	var errs []error
	missing := func(what string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSetting, what))
	}

	switch c.Resolver {
	case ResolverSuggest:
		if strings.TrimSpace(c.Suggest.URL) == "" {
			missing("suggest.url (or " + EnvSuggestURL + ")")
		}
		return errors.Join(errs...)
	case ResolverRetrieval:
	default:
		return fmt.Errorf("unknown resolver: %s", c.Resolver)
	}

	if strings.TrimSpace(c.Model.Dir) == "" {
		missing("model.dir")
	}
	switch c.Index.Backend {
	case BackendPinecone:
		if c.Index.APIKey == "" {
			missing(EnvPineconeAPIKey)
		}
		if c.Index.URL == "" {
			missing(EnvPineconeIndexURL)
		}
	case BackendPGVector:
		if c.Index.PostgresDSN == "" {
			missing(EnvPostgresDSN)
		}
		if !tableNamePattern.MatchString(c.Index.Table) {
			errs = append(errs, fmt.Errorf("index.table %q is not a valid identifier", c.Index.Table))
		}
	case BackendSQLite:
		if strings.TrimSpace(c.Index.SQLitePath) == "" {
			missing("index.sqlite_path (or " + EnvSQLitePath + ")")
		}
		if !tableNamePattern.MatchString(c.Index.Table) {
			errs = append(errs, fmt.Errorf("index.table %q is not a valid identifier", c.Index.Table))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown index backend: %s", c.Index.Backend))
	}
	return errors.Join(errs...)
}

func (c Config) ModelPath() string {
	return filepath.Join(c.Model.Dir, c.Model.ModelFile)
}

func (c Config) TokenizerPath() string {
	return filepath.Join(c.Model.Dir, c.Model.TokenizerFile)
}

func (c *Config) normalize() {
	defaults := Default()
	if c.Version == 0 {
		c.Version = defaults.Version
	}
	c.Resolver = strings.ToLower(strings.TrimSpace(c.Resolver))
	if c.Resolver == "" {
		c.Resolver = defaults.Resolver
	}
	if c.Model.Dir == "" {
		c.Model.Dir = defaults.Model.Dir
	}
	if c.Model.ModelFile == "" {
		c.Model.ModelFile = defaults.Model.ModelFile
	}
	if c.Model.TokenizerFile == "" {
		c.Model.TokenizerFile = defaults.Model.TokenizerFile
	}
	if c.Model.OutputName == "" {
		c.Model.OutputName = defaults.Model.OutputName
	}
	if c.Model.HiddenSize <= 0 {
		c.Model.HiddenSize = defaults.Model.HiddenSize
	}
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	if c.Index.Backend == "" {
		c.Index.Backend = defaults.Index.Backend
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = defaults.Index.TopK
	}
	if c.Index.TimeoutSeconds <= 0 {
		c.Index.TimeoutSeconds = defaults.Index.TimeoutSeconds
	}
	if c.Index.RetryMax < 0 {
		c.Index.RetryMax = 0
	}
	if c.Index.Table == "" {
		c.Index.Table = defaults.Index.Table
	}
	if c.Suggest.TimeoutSeconds <= 0 {
		c.Suggest.TimeoutSeconds = defaults.Suggest.TimeoutSeconds
	}
	c.UI.Backend = normalizeUIBackend(c.UI.Backend, defaults.UI.Backend)
	if c.Server.Listen == "" {
		c.Server.Listen = defaults.Server.Listen
	}
}

func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	value = strings.TrimSpace(value)

	switch key {
	case "resolver":
		switch strings.ToLower(value) {
		case ResolverRetrieval, ResolverSuggest:
			c.Resolver = strings.ToLower(value)
		default:
			return fmt.Errorf("resolver must be one of retrieval|suggest")
		}
	case "model.dir":
		c.Model.Dir = value
	case "model.model_file":
		c.Model.ModelFile = value
	case "model.tokenizer_file":
		c.Model.TokenizerFile = value
	case "model.runtime_library":
		c.Model.RuntimeLibrary = value
	case "model.output_name":
		c.Model.OutputName = value
	case "model.hidden_size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("model.hidden_size must be a positive number")
		}
		c.Model.HiddenSize = n
	case "index.backend":
		switch strings.ToLower(value) {
		case BackendPinecone, BackendPGVector, BackendSQLite:
			c.Index.Backend = strings.ToLower(value)
		default:
			return fmt.Errorf("index.backend must be one of pinecone|pgvector|sqlite")
		}
	case "index.top_k":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("index.top_k must be a positive number")
		}
		c.Index.TopK = n
	case "index.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("index.timeout_seconds must be a positive number")
		}
		c.Index.TimeoutSeconds = n
	case "index.retry_max":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("index.retry_max must be zero or a positive number")
		}
		c.Index.RetryMax = n
	case "index.namespace":
		c.Index.Namespace = value
	case "index.table":
		if !tableNamePattern.MatchString(value) {
			return fmt.Errorf("index.table must be a SQL identifier")
		}
		c.Index.Table = value
	case "index.sqlite_path":
		c.Index.SQLitePath = value
	case "suggest.url":
		c.Suggest.URL = value
	case "suggest.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("suggest.timeout_seconds must be a positive number")
		}
		c.Suggest.TimeoutSeconds = n
	case "ui.backend":
		c.UI.Backend = normalizeUIBackend(value, "")
		if c.UI.Backend == "" {
			return fmt.Errorf("ui.backend must be one of plain|auto|bubbletea|huh|tview")
		}
	case "audit.enabled":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("audit.enabled must be boolean")
		}
		c.Audit.Enabled = b
	case "server.listen":
		if value == "" {
			return fmt.Errorf("server.listen cannot be empty")
		}
		c.Server.Listen = value
	case "server.allowed_origins":
		c.Server.AllowedOrigins = splitCommaList(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	c.normalize()
	return nil
}

func (c Config) Get(key string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(key)) {
	case "resolver":
		return c.Resolver, nil
	case "model.dir":
		return c.Model.Dir, nil
	case "model.model_file":
		return c.Model.ModelFile, nil
	case "model.tokenizer_file":
		return c.Model.TokenizerFile, nil
	case "model.runtime_library":
		return c.Model.RuntimeLibrary, nil
	case "model.output_name":
		return c.Model.OutputName, nil
	case "model.hidden_size":
		return strconv.Itoa(c.Model.HiddenSize), nil
	case "index.backend":
		return c.Index.Backend, nil
	case "index.top_k":
		return strconv.Itoa(c.Index.TopK), nil
	case "index.timeout_seconds":
		return strconv.Itoa(c.Index.TimeoutSeconds), nil
	case "index.retry_max":
		return strconv.Itoa(c.Index.RetryMax), nil
	case "index.namespace":
		return c.Index.Namespace, nil
	case "index.table":
		return c.Index.Table, nil
	case "index.sqlite_path":
		return c.Index.SQLitePath, nil
	case "suggest.url":
		return c.Suggest.URL, nil
	case "suggest.timeout_seconds":
		return strconv.Itoa(c.Suggest.TimeoutSeconds), nil
	case "ui.backend":
		return c.UI.Backend, nil
	case "audit.enabled":
		return strconv.FormatBool(c.Audit.Enabled), nil
	case "server.listen":
		return c.Server.Listen, nil
	case "server.allowed_origins":
		return strings.Join(c.Server.AllowedOrigins, ","), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool: %s", value)
	}
}

func splitCommaList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func normalizeUIBackend(value string, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "plain", "auto", "bubbletea", "huh", "tview":
		return normalized
	default:
		return strings.ToLower(strings.TrimSpace(fallback))
	}
}
