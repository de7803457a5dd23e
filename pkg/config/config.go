package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves a field unset
const (
	DefaultSocketPath      = "ipc:///var/run/agentd/agentd.sock"
	DefaultDataDir         = "./agentd-data"
	DefaultRefreshInterval = 30 * time.Second
)

// Config holds the agent's bootstrap configuration. Mutable state (session
// counts, encoded keys) lives in the settings store, not here; the values in
// this struct seed the store on first run only.
type Config struct {
	// SocketPath is the primary frontend endpoint
	SocketPath string `yaml:"socket_path"`

	// Endpoints are additional frontend listen endpoints sharing the same
	// authentication policy and private key
	Endpoints []string `yaml:"endpoints"`

	// DataDir holds the settings database
	DataDir string `yaml:"data_dir"`

	// Clients and Servers are the initial session counts
	Clients int64 `yaml:"clients"`
	Servers int64 `yaml:"servers"`

	// Workers fixes the backend worker count; 0 derives it from the
	// available hardware concurrency
	Workers int `yaml:"workers"`

	// CURVE keys, Z85-encoded
	ServerPrivateKey string `yaml:"server_privkey"`
	ServerPublicKey  string `yaml:"server_pubkey"`
	ClientPrivateKey string `yaml:"client_privkey"`
	ClientPublicKey  string `yaml:"client_pubkey"`

	// RefreshInterval is the period of each client session's refresh cycle
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// MetricsAddr serves Prometheus metrics when non-empty
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Load reads and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults
func (c *Config) ApplyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Workers <= 0 {
		c.Workers = WorkerCount()
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty")
	}
	if c.Clients < 0 || c.Servers < 0 {
		return fmt.Errorf("session counts must not be negative")
	}
	if c.ServerPrivateKey == "" || c.ServerPublicKey == "" {
		return fmt.Errorf("server keypair must be configured")
	}
	if c.ClientPublicKey == "" {
		return fmt.Errorf("client public key must be configured")
	}

	return nil
}

// WorkerCount derives the backend worker count from the available hardware
// concurrency, with a floor of one
func WorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}

	return n
}
