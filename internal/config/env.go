package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome         = "WALLETLINK_HOME"
	EnvStacksAPI    = "WALLETLINK_STACKS_API"
	EnvRootstockRPC = "WALLETLINK_ROOTSTOCK_RPC"
	EnvStoreURL     = "WALLETLINK_STORE_URL"
	EnvStoreKey     = "WALLETLINK_STORE_KEY" // #nosec G101 -- false positive, this is a const name not a credential
	EnvUserID       = "WALLETLINK_USER_ID"
	EnvCacheTTL     = "WALLETLINK_CACHE_TTL"
	EnvOutputFormat = "WALLETLINK_OUTPUT_FORMAT"
	EnvVerbose      = "WALLETLINK_VERBOSE"
	EnvLogLevel     = "WALLETLINK_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvStacksAPI); v != "" {
		cfg.Networks.Stacks.API = SanitizeURL(v)
	}

	if v := os.Getenv(EnvRootstockRPC); v != "" {
		cfg.Networks.Rootstock.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvStoreURL); v != "" {
		cfg.Store.URL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvStoreKey); v != "" {
		cfg.Store.APIKey = v
	}

	if v := os.Getenv(EnvUserID); v != "" {
		cfg.Store.UserID = v
	}

	// WALLETLINK_CACHE_TTL sets the connection cache lifetime in minutes
	if v := os.Getenv(EnvCacheTTL); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil && ttl > 0 {
			cfg.Cache.TTLMinutes = ttl
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// Useful for user-provided API and RPC URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
