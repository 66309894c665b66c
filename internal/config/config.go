// Package config provides configuration management for walletlink.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Home       string           `yaml:"home"`
	Networks   NetworksConfig   `yaml:"networks"`
	Cache      CacheConfig      `yaml:"cache"`
	Balance    BalanceConfig    `yaml:"balance"`
	Connectors ConnectorsConfig `yaml:"connectors"`
	Store      StoreConfig      `yaml:"store"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// NetworksConfig defines per-family network settings.
type NetworksConfig struct {
	Stacks    StacksNetworkConfig    `yaml:"stacks"`
	Rootstock RootstockNetworkConfig `yaml:"rootstock"`
}

// StacksNetworkConfig defines Stacks network settings.
type StacksNetworkConfig struct {
	Enabled bool        `yaml:"enabled"`
	API     string      `yaml:"api"`
	FeedURL string      `yaml:"feed_url"`
	Network string      `yaml:"network"`
	Bridge  string      `yaml:"bridge,omitempty"`
	Token   TokenConfig `yaml:"token"`
}

// TokenConfig defines a fungible token contract to track alongside the
// native asset.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Contract string `yaml:"contract"`
	Name     string `yaml:"name"`
	Decimals int    `yaml:"decimals"`
}

// RootstockNetworkConfig defines Rootstock network settings.
type RootstockNetworkConfig struct {
	Enabled      bool     `yaml:"enabled"`
	RPC          string   `yaml:"rpc"`
	FallbackRPCs []string `yaml:"fallback_rpcs,omitempty"`
	ChainID      string   `yaml:"chain_id"`
	Bridge       string   `yaml:"bridge,omitempty"`
}

// CacheConfig defines connection cache settings.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// BalanceConfig defines balance synchronization settings.
type BalanceConfig struct {
	DebounceMs        int `yaml:"debounce_ms"`
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// ConnectorsConfig defines third-party app connector settings.
type ConnectorsConfig struct {
	Origin              string          `yaml:"origin"`
	PopupTimeoutMinutes int             `yaml:"popup_timeout_minutes"`
	GitHub              ConnectorConfig `yaml:"github"`
	Vercel              ConnectorConfig `yaml:"vercel"`
	Supabase            ConnectorConfig `yaml:"supabase"`
}

// ConnectorConfig defines a single OAuth-style app connector.
type ConnectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	ClientID string `yaml:"client_id"`
	AuthURL  string `yaml:"auth_url"`
}

// StoreConfig defines persistence gateway settings. UserID identifies
// the signed-in application user; wallet operations refuse to run
// without one.
type StoreConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	UserID string `yaml:"user_id,omitempty"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, linkerr.WithCause(linkerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks the configuration for values the rest of the system
// cannot work with.
func (c *Config) Validate() error {
	if c.Cache.TTLMinutes <= 0 {
		return linkerr.WithDetails(linkerr.ErrConfigInvalid, map[string]string{
			"field": "cache.ttl_minutes",
			"value": "must be positive",
		})
	}
	if c.Balance.DebounceMs < 0 {
		return linkerr.WithDetails(linkerr.ErrConfigInvalid, map[string]string{
			"field": "balance.debounce_ms",
			"value": "must not be negative",
		})
	}
	if c.Networks.Rootstock.Enabled && c.Networks.Rootstock.ChainID == "" {
		return linkerr.WithDetails(linkerr.ErrConfigInvalid, map[string]string{
			"field": "networks.rootstock.chain_id",
			"value": "required when rootstock is enabled",
		})
	}
	return nil
}

// CacheTTL returns the connection cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// BalanceDebounce returns the balance fetch debounce window.
func (c *Config) BalanceDebounce() time.Duration {
	return time.Duration(c.Balance.DebounceMs) * time.Millisecond
}

// PopupTimeout returns how long a connector popup may stay open.
func (c *Config) PopupTimeout() time.Duration {
	return time.Duration(c.Connectors.PopupTimeoutMinutes) * time.Minute
}

// GetHome returns the walletlink home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default walletlink home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletlink"
	}
	return filepath.Join(home, ".walletlink")
}
