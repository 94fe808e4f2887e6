package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for rentalindexd.
type Config struct {
	ListenAddress string         `yaml:"listen"`
	NodeRPC       string         `yaml:"node_rpc"`
	Database      DatabaseConfig `yaml:"database"`
	PollInterval  Duration       `yaml:"poll_interval"`
	BatchSize     int            `yaml:"batch_size"`
	ExportDir     string         `yaml:"export_dir"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the read-model store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Database.normalise(); err != nil {
		return cfg, fmt.Errorf("database: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8646"
	}
	if cfg.NodeRPC == "" {
		cfg.NodeRPC = "http://localhost:8645"
	}
	if cfg.PollInterval.Duration == 0 {
		cfg.PollInterval.Duration = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "./exports"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (d *DatabaseConfig) normalise() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	d.DSN = strings.TrimSpace(d.DSN)
	d.DSNEnv = strings.TrimSpace(d.DSNEnv)
	if d.DSN != "" {
		return nil
	}
	if d.DSNEnv != "" {
		value := strings.TrimSpace(os.Getenv(d.DSNEnv))
		if value == "" {
			return fmt.Errorf("dsn_env %s is empty", d.DSNEnv)
		}
		d.DSN = value
		return nil
	}
	if d.Driver == DriverSQLite {
		d.DSN = "rentalindex.db"
		return nil
	}
	return fmt.Errorf("dsn is required")
}

func validateConfig(cfg Config) error {
	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	parsed, err := url.Parse(cfg.NodeRPC)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("node_rpc must be an absolute URL")
	}
	if cfg.PollInterval.Duration < 100*time.Millisecond {
		return fmt.Errorf("poll_interval must be at least 100ms")
	}
	if cfg.BatchSize > 1000 {
		return fmt.Errorf("batch_size must not exceed 1000")
	}
	return nil
}
