// Package config loads morningglow settings.
//
// Precedence, lowest to highest:
//  1. built-in defaults
//  2. YAML file (~/.config/morningglow/config.yaml, or an explicit path)
//  3. MORNINGGLOW_* environment variables
//
// Command line flags are applied by the binaries on top of the result.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before mapping them to keys.
// MORNINGGLOW_SERVER_ALLOW_ORIGIN maps to server.allow_origin.
const EnvPrefix = "MORNINGGLOW_"

const maxConfigFileSize = 1 << 20

const defaults = `
server:
  port: 3001
  allow_origin: "*"
  max_body_bytes: 10485760
  rate_limit: 0
  read_timeout: 30s
  write_timeout: 90s
  shutdown_timeout: 10s
gemini:
  model: gemini-2.5-flash
  strict_score: false
client:
  server_url: http://localhost:3001
  nickname: 부지런한햇살
  timeout: 60s
`

// Config is the full configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Gemini GeminiConfig `koanf:"gemini"`
	Client ClientConfig `koanf:"client"`
}

// ServerConfig configures the analysis server.
type ServerConfig struct {
	AllowOrigin     string        `koanf:"allow_origin"` // empty disables CORS headers
	Port            int           `koanf:"port"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	RateLimit       int           `koanf:"rate_limit"` // analyze requests per client per minute, 0 = off
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GeminiConfig configures the vision model.
type GeminiConfig struct {
	APIKey      string `koanf:"api_key"`
	Model       string `koanf:"model"`
	GCPProject  string `koanf:"gcp_project"`
	StrictScore bool   `koanf:"strict_score"`
}

// ClientConfig configures the terminal app.
type ClientConfig struct {
	ServerURL string        `koanf:"server_url"`
	DBPath    string        `koanf:"db_path"`
	Nickname  string        `koanf:"nickname"`
	Timeout   time.Duration `koanf:"timeout"`
}

// DefaultPath is ~/.config/morningglow/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "morningglow", "config.yaml"), nil
}

// DefaultDBPath is ~/.local/share/morningglow/morningglow.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "morningglow", "morningglow.db"), nil
}

// Load reads configuration. An empty path means DefaultPath; a missing file at
// the default path is not an error, a missing explicit path is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return load(path, explicit)
}

func load(path string, explicit bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	content, err := readConfigFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Client.DBPath == "" {
		p, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.Client.DBPath = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps MORNINGGLOW_SECTION_FIELD_NAME to section.field_name.
func envKey(key, value string) (string, any) {
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower, value
	}
	return section + "." + field, value
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}
	return content, nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Client.ServerURL == "" {
		return errors.New("client.server_url is required")
	}
	return nil
}
