package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Lookup backends for the deep-link loader.
const (
	LookupREST   = "rest"
	LookupSQLite = "sqlite"
)

// Defaults applied to missing values.
const (
	DefaultBasePath   = "/clients"
	DefaultListenAddr = "127.0.0.1:8080"
	DefaultLogLevel   = "info"
)

// Config represents the doula configuration in .doula/config.yaml.
type Config struct {
	APIBaseURL   string        `yaml:"api_base_url,omitempty"`
	DBPath       string        `yaml:"db_path,omitempty"`
	LogLevel     string        `yaml:"log_level,omitempty"`
	ListenAddr   string        `yaml:"listen_addr,omitempty"`
	BasePath     string        `yaml:"base_path,omitempty"`     // listing route
	Lookup       string        `yaml:"lookup,omitempty"`        // "rest" or "sqlite"
	FetchTimeout time.Duration `yaml:"fetch_timeout,omitempty"` // 0 = none
}

// Path returns the config file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, ".doula", "config.yaml")
}

// LoadConfig reads .doula/config.yaml from the specified directory, overlays
// DOULA_* environment variables and applies defaults.
// A missing file is not an error.
func LoadConfig(dir string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(Path(dir))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes config.yaml to directory
func SaveConfig(dir string, cfg *Config) error {
	doulaDir := filepath.Dir(Path(dir))
	if err := os.MkdirAll(doulaDir, 0755); err != nil {
		return fmt.Errorf("failed to create .doula dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Lookup {
	case LookupREST:
		if c.APIBaseURL == "" {
			return errors.New("lookup \"rest\" requires api_base_url")
		}
	case LookupSQLite:
	default:
		return fmt.Errorf("unknown lookup %q (want %q or %q)", c.Lookup, LookupREST, LookupSQLite)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must not be negative, got %s", c.FetchTimeout)
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base_path must start with /, got %q", c.BasePath)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	overlay := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	overlay(&c.APIBaseURL, "DOULA_API_BASE_URL")
	overlay(&c.DBPath, "DOULA_DB_PATH")
	overlay(&c.LogLevel, "DOULA_LOG_LEVEL")
	overlay(&c.ListenAddr, "DOULA_LISTEN_ADDR")
}

func (c *Config) applyDefaults() error {
	if c.DBPath == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return err
		}
		c.DBPath = path
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.Lookup == "" {
		c.Lookup = LookupSQLite
		if c.APIBaseURL != "" {
			c.Lookup = LookupREST
		}
	}
	return nil
}

// DefaultDBPath returns ~/.doula/doula.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".doula", "doula.db"), nil
}
