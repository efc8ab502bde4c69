package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime options for the lumenchat daemon.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`

	// Store selects the chat store backend: "sqlite" or "postgres".
	Store       string `yaml:"store"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// Provider credentials and endpoints.
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	OpenAIOrg        string `yaml:"openai_org"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`
	AnthropicVersion string `yaml:"anthropic_version"`

	// ProviderTimeout bounds every upstream vendor call.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// File storage and public resolution.
	StorageDir  string `yaml:"storage_dir"`
	FileBaseURL string `yaml:"file_base_url"`

	// Optional model metadata overrides (JSON array).
	ModelMetaPath string `yaml:"model_meta_path"`

	// Logging.
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// defaults returns the baseline configuration before file and env overrides.
func defaults() Config {
	return Config{
		ListenAddr:      ":8080",
		Store:           "sqlite",
		SQLitePath:      "data/lumenchat.db",
		StorageDir:      "data/files",
		FileBaseURL:     "http://localhost:8080/files",
		ProviderTimeout: 120 * time.Second,
		LogLevel:        "info",
	}
}

// Load reads the YAML config at path (missing file is fine), then applies
// LUMENCHAT_* environment overrides, then validates.
func Load(path string) (Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// run on defaults + env
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays LUMENCHAT_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("LUMENCHAT_LISTEN_ADDR", &cfg.ListenAddr)
	setString("LUMENCHAT_STORE", &cfg.Store)
	setString("LUMENCHAT_SQLITE_PATH", &cfg.SQLitePath)
	setString("LUMENCHAT_POSTGRES_DSN", &cfg.PostgresDSN)
	setString("LUMENCHAT_OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	setString("LUMENCHAT_OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	setString("LUMENCHAT_OPENAI_ORG", &cfg.OpenAIOrg)
	setString("LUMENCHAT_ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey)
	setString("LUMENCHAT_ANTHROPIC_BASE_URL", &cfg.AnthropicBaseURL)
	setString("LUMENCHAT_ANTHROPIC_VERSION", &cfg.AnthropicVersion)
	setString("LUMENCHAT_STORAGE_DIR", &cfg.StorageDir)
	setString("LUMENCHAT_FILE_BASE_URL", &cfg.FileBaseURL)
	setString("LUMENCHAT_MODEL_META_PATH", &cfg.ModelMetaPath)
	setString("LUMENCHAT_LOG_FILE", &cfg.LogFile)
	setString("LUMENCHAT_LOG_LEVEL", &cfg.LogLevel)

	if v, ok := os.LookupEnv("LUMENCHAT_PROVIDER_TIMEOUT_SECONDS"); ok {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ProviderTimeout = time.Duration(secs) * time.Second
		}
	}
}

func (c Config) validate() error {
	switch c.Store {
	case "sqlite":
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("config: sqlite_path required for sqlite store")
		}
	case "postgres":
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("config: postgres_dsn required for postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store %q (allowed: sqlite, postgres)", c.Store)
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("config: listen_addr required")
	}
	if c.OpenAIAPIKey == "" && c.AnthropicAPIKey == "" {
		return errors.New("config: at least one provider api key required")
	}
	return nil
}
