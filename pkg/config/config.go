package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is omitted.
const (
	DefaultHTTPAddr      = ":8080"
	DefaultWSPath        = "/ws"
	DefaultMetricsAddr   = ":9091"
	DefaultMetricsPath   = "/metrics"
	DefaultSchedule      = "@every 30s"
	DefaultPostSwing     = "0.01"
	DefaultPostBuffer    = 5 * time.Minute
	DefaultPosterTimeout = 10 * time.Second
	DefaultHeartbeat     = time.Hour
)

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set are left untouched.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.Server.WebSocket.Path == "" {
		cfg.Server.WebSocket.Path = DefaultWSPath
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for i := range cfg.Models {
		if cfg.Models[i].Type == "" {
			cfg.Models[i].Type = ModelTypePoster
		}
		if cfg.Models[i].Heartbeat == 0 {
			cfg.Models[i].Heartbeat = Duration(DefaultHeartbeat)
		}
	}

	if cfg.Poster.Schedule == "" {
		cfg.Poster.Schedule = DefaultSchedule
	}
	if cfg.Poster.PostSwing == "" {
		cfg.Poster.PostSwing = DefaultPostSwing
	}
	if cfg.Poster.PostBuffer == 0 {
		cfg.Poster.PostBuffer = Duration(DefaultPostBuffer)
	}
	if cfg.Poster.Timeout == 0 {
		cfg.Poster.Timeout = Duration(DefaultPosterTimeout)
	}
	if cfg.Poster.Address == "" {
		cfg.Poster.Address = cfg.Oracle.Poster
	}
}

// Model returns the model configured under name.
func (c *Config) Model(name string) (*ModelConfig, bool) {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], true
		}
	}
	return nil, false
}

// Asset returns the asset configured under symbol (case-insensitive).
func (c *Config) Asset(symbol string) (*AssetConfig, bool) {
	for i := range c.Assets {
		if strings.EqualFold(c.Assets[i].Symbol, symbol) {
			return &c.Assets[i], true
		}
	}
	return nil, false
}

// EnabledFeeds returns the feeds with enabled set.
func (c *Config) EnabledFeeds() []FeedConfig {
	out := make([]FeedConfig, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// ResolveReader maps an asset's reader field to an address. A configured
// symbol wins over a literal address.
func (c *Config) ResolveReader(reader string) (common.Address, error) {
	if a, ok := c.Asset(reader); ok {
		return ParseAddress(a.Address)
	}
	if common.IsHexAddress(reader) {
		return common.HexToAddress(reader), nil
	}
	return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownReader, reader)
}

// ParseAddress parses a 0x-prefixed hex account address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
