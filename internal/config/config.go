// ABOUTME: Configuration loading and parsing for the gateway
// ABOUTME: Supports YAML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Crypto   CryptoConfig   `yaml:"crypto"`
	Quota    QuotaConfig    `yaml:"quota"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the gateway edge's listen address and framing limits.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`

	ShutdownGracePeriod    time.Duration `yaml:"-"`
	ShutdownGracePeriodRaw string        `yaml:"shutdown_grace_period"`
}

// DatabaseConfig holds the metadata store's connection path.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CryptoConfig holds the master encryption key used to seal/open credential
// fields. MasterKeyHex may also be supplied via GATEWAY_MASTER_KEY, which
// takes precedence over the file (see Load).
type CryptoConfig struct {
	MasterKeyHex string `yaml:"master_key"`
}

// QuotaConfig holds the fire-and-forget usage queue's sizing knobs.
type QuotaConfig struct {
	UsageQueueBufferSize int `yaml:"usage_queue_buffer_size"`
	UsageQueueWorkers    int `yaml:"usage_queue_workers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded
// before YAML parsing; GATEWAY_MASTER_KEY and GATEWAY_DB_PATH are then
// applied on top of the parsed file, taking precedence over whatever the
// file itself specified.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable's value. A variable that isn't set expands to "".
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets GATEWAY_MASTER_KEY and GATEWAY_DB_PATH win over
// whatever the config file specified, so a checked-in file never has to
// carry deployment secrets.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GATEWAY_MASTER_KEY"); key != "" {
		cfg.Crypto.MasterKeyHex = key
	}
	if path := os.Getenv("GATEWAY_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownGracePeriod == 0 {
		cfg.Server.ShutdownGracePeriod = 10 * time.Second
	}
	if cfg.Quota.UsageQueueBufferSize == 0 {
		cfg.Quota.UsageQueueBufferSize = 1024
	}
	if cfg.Quota.UsageQueueWorkers == 0 {
		cfg.Quota.UsageQueueWorkers = 4
	}
}

// Validate checks that all required configuration fields are present.
// Returns an error describing the first validation failure encountered.
// The master key is deliberately not checked here: its absence is a fatal
// startup error raised by crypto.MustNewMasterKey, which can give a more
// specific message than a generic config validation failure.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.RequestTimeoutRaw != "" {
		cfg.Server.RequestTimeout, err = time.ParseDuration(cfg.Server.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Server.RequestTimeoutRaw, err)
		}
	}

	if cfg.Server.ShutdownGracePeriodRaw != "" {
		cfg.Server.ShutdownGracePeriod, err = time.ParseDuration(cfg.Server.ShutdownGracePeriodRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_grace_period %q: %w", cfg.Server.ShutdownGracePeriodRaw, err)
		}
	}

	return nil
}
