// Package config provides a reusable loader for the client's environment
// inputs (spec §6: RPC endpoint, RPC timeout, store location, keystore
// location, debug-mode flag, graceful blocks, max block delta). It mirrors
// the layered viper/yaml loader the teacher stack uses for node
// configuration, scoped down to what the client engine itself needs.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// RPCConfig describes how to reach the remote node.
type RPCConfig struct {
	Scheme  string        `mapstructure:"scheme" json:"scheme"`
	Host    string        `mapstructure:"host" json:"host"`
	Port    int           `mapstructure:"port" json:"port"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Endpoint renders the RPC target as a single dial string.
func (c RPCConfig) Endpoint() string {
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port)
}

// Config is the unified configuration for a client instance.
type Config struct {
	RPC RPCConfig `mapstructure:"rpc" json:"rpc"`

	StorePath    string `mapstructure:"store_path" json:"store_path"`
	KeystorePath string `mapstructure:"keystore_path" json:"keystore_path"`

	Debug bool `mapstructure:"debug" json:"debug"`

	// GracefulBlocks is how many blocks past a transaction's reference
	// block the sync engine waits before discarding it as stale.
	GracefulBlocks uint32 `mapstructure:"graceful_blocks" json:"graceful_blocks"`

	// MaxBlockNumberDelta rejects a remote block number that jumps ahead of
	// the local sync height by more than this, guarding against an
	// accidental catastrophic resync.
	MaxBlockNumberDelta uint32 `mapstructure:"max_block_number_delta" json:"max_block_number_delta"`

	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Default returns conservative defaults matching what the mock chain and
// in-process tests use.
func Default() Config {
	return Config{
		RPC: RPCConfig{
			Scheme:  "grpc",
			Host:    "127.0.0.1",
			Port:    57291,
			Timeout: 10 * time.Second,
		},
		StorePath:           "./rollup-client.db",
		KeystorePath:        "./keystore",
		Debug:               false,
		GracefulBlocks:      20,
		MaxBlockNumberDelta: 10_000,
		LogLevel:            "info",
	}
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig = Default()

// Load reads configuration files from the supplied search paths and merges
// environment-specific overrides named by env (ignored if empty). Matching
// environment variables (ROLLUPCLIENT_*) always take precedence.
func Load(env string, searchPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("default")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "./config"}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	def := Default()
	v.SetDefault("rpc.scheme", def.RPC.Scheme)
	v.SetDefault("rpc.host", def.RPC.Host)
	v.SetDefault("rpc.port", def.RPC.Port)
	v.SetDefault("rpc.timeout", def.RPC.Timeout)
	v.SetDefault("store_path", def.StorePath)
	v.SetDefault("keystore_path", def.KeystorePath)
	v.SetDefault("debug", def.Debug)
	v.SetDefault("graceful_blocks", def.GracefulBlocks)
	v.SetDefault("max_block_number_delta", def.MaxBlockNumberDelta)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if env != "" {
		v.SetConfigName(env)
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("merge %s config: %w", env, err)
			}
		}
	}

	v.SetEnvPrefix("ROLLUPCLIENT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	AppConfig = cfg
	return &cfg, nil
}

// LoadFromEnv loads configuration using the ROLLUPCLIENT_ENV environment
// variable to pick an overlay file, falling back to defaults only.
func LoadFromEnv() (*Config, error) {
	return Load(EnvOrDefault("ROLLUPCLIENT_ENV", ""))
}
