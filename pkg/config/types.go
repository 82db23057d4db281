package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Model types understood by the setup package.
const (
	ModelTypePoster = "poster"
	ModelTypeFeed   = "feed"
)

// Config is the root configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Oracle  OracleConfig  `yaml:"oracle"`
	Models  []ModelConfig `yaml:"models"`
	Feeds   []FeedConfig  `yaml:"feeds"`
	Assets  []AssetConfig `yaml:"assets"`
	Poster  PosterConfig  `yaml:"poster"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the read API
type ServerConfig struct {
	Enabled   bool       `yaml:"enabled"`
	HTTP      HTTPConfig `yaml:"http"`
	WebSocket WSConfig   `yaml:"websocket"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string    `yaml:"addr"`
	TLS  TLSConfig `yaml:"tls"`
}

// WSConfig configures the post stream endpoint
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TLSConfig holds TLS certificate configuration
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// OracleConfig holds the facade identity and its initial access settings.
type OracleConfig struct {
	Address string `yaml:"address"`
	Owner   string `yaml:"owner"`
	Poster  string `yaml:"poster"`
	Paused  bool   `yaml:"paused"`
}

// ModelConfig describes one price model deployed behind the oracle.
type ModelConfig struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	Address   string        `yaml:"address"`
	MaxSwing  string        `yaml:"max_swing"` // decimal fraction, e.g. "0.1"
	Heartbeat Duration      `yaml:"heartbeat"`
	Layer2    *Layer2Config `yaml:"layer2"`
}

// Layer2Config gates a model on an L2 sequencer uptime feed.
type Layer2Config struct {
	RPCURL      string   `yaml:"rpc_url"`
	Address     string   `yaml:"address"`
	GracePeriod Duration `yaml:"grace_period"`
}

// FeedConfig configures an external quote feed. Type and Name select the
// implementation ("evm.chainlink"); ID is the handle assets refer to.
type FeedConfig struct {
	ID      string                 `yaml:"id"`
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// Key returns ID, or "type.name" when no ID is set.
func (f FeedConfig) Key() string {
	if f.ID != "" {
		return f.ID
	}
	return f.Type + "." + f.Name
}

// AssetConfig bootstraps one asset. Optional fields left empty are not applied.
type AssetConfig struct {
	Symbol    string   `yaml:"symbol"`
	Address   string   `yaml:"address"`
	Model     string   `yaml:"model"`
	Price     string   `yaml:"price"`
	MaxSwing  string   `yaml:"max_swing"`
	Heartbeat Duration `yaml:"heartbeat"`
	Reader    string   `yaml:"reader"` // symbol of another asset or a hex address
	Feed      string   `yaml:"feed"`
}

// PosterConfig configures the scheduled poster loop
type PosterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Address     string            `yaml:"address"` // identity used for setPrices, defaults to oracle.poster
	PriceSource PriceSourceConfig `yaml:"price_source"`
	Schedule    string            `yaml:"schedule"`
	PostSwing   string            `yaml:"post_swing"`
	PostBuffer  Duration          `yaml:"post_buffer"`
	Timeout     Duration          `yaml:"timeout"`
}

// PriceSourceConfig configures where the poster fetches prices
type PriceSourceConfig struct {
	URL          string   `yaml:"url"`
	FallbackURLs []string `yaml:"fallback_urls"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing.
// Accepts Go duration strings ("90s", "1h") or a bare integer of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var secs int64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
