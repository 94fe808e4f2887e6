package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trustrent/crypto"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultSecretEnv names the environment variable holding the JWT secret.
	DefaultSecretEnv = "TRUSTRENT_JWT_SECRET"
	// ArbiterPassphraseEnv names the environment variable holding the arbiter
	// keystore passphrase used when a default keystore is generated.
	ArbiterPassphraseEnv = "TRUSTRENT_ARBITER_PASSPHRASE"

	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

type Config struct {
	NetworkName         string       `toml:"NetworkName"`
	DataDir             string       `toml:"DataDir"`
	DBBackend           string       `toml:"DBBackend"`
	Arbiter             string       `toml:"Arbiter"`
	ArbiterKeystorePath string       `toml:"ArbiterKeystorePath"`
	RPC                 RPC          `toml:"rpc"`
	Auth                Auth         `toml:"auth"`
	Faucet              Faucet       `toml:"faucet"`
	Pricing             Pricing      `toml:"pricing"`
	Logging             Logging      `toml:"logging"`
	Telemetry           Telemetry    `toml:"telemetry"`
	Genesis             []Allocation `toml:"genesis"`
}

// Load loads the configuration from the given path. A default configuration,
// together with a fresh arbiter keystore, is written when the file is missing.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if strings.TrimSpace(cfg.Arbiter) == "" {
		if err := ensureArbiter(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written on first start, without an arbiter.
func Default() *Config {
	cfg := &Config{
		NetworkName: "trustrent-local",
		DataDir:     "./trustrent-data",
		DBBackend:   BackendLevelDB,
		Genesis:     []Allocation{},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "trustrent-local"
	}
	if strings.TrimSpace(c.DBBackend) == "" {
		c.DBBackend = BackendLevelDB
	}
	c.DBBackend = strings.ToLower(strings.TrimSpace(c.DBBackend))
	if c.RPC.ListenAddress == "" {
		c.RPC.ListenAddress = ":8645"
	}
	if c.RPC.ReadHeaderTimeoutSecs <= 0 {
		c.RPC.ReadHeaderTimeoutSecs = 5
	}
	if c.RPC.WriteTimeoutSecs <= 0 {
		c.RPC.WriteTimeoutSecs = 15
	}
	if c.RPC.RateLimitPerSecond == 0 {
		c.RPC.RateLimitPerSecond = 20
	}
	if c.RPC.RateLimitBurst == 0 {
		c.RPC.RateLimitBurst = 40
	}
	if c.RPC.IdempotencyTTLSecs <= 0 {
		c.RPC.IdempotencyTTLSecs = 24 * 3600
	}
	if c.RPC.TrustedProxies == nil {
		c.RPC.TrustedProxies = []string{}
	}
	if c.Auth.SecretEnv == "" {
		c.Auth.SecretEnv = DefaultSecretEnv
	}
	if c.Faucet.Amount == "" {
		c.Faucet.Amount = "1000000000"
	}
	if c.Pricing.RateE8 == "" {
		c.Pricing.RateE8 = "100000000"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Genesis == nil {
		c.Genesis = []Allocation{}
	}
}

// IdempotencyFile resolves the bbolt path used for idempotent replays.
func (c *Config) IdempotencyFile() string {
	if strings.TrimSpace(c.RPC.IdempotencyPath) != "" {
		return c.RPC.IdempotencyPath
	}
	return filepath.Join(c.DataDir, "idempotency.db")
}

// JWTSecret returns the configured HMAC secret from the environment.
func (c *Config) JWTSecret() string {
	return strings.TrimSpace(os.Getenv(c.Auth.SecretEnv))
}

func ensureArbiter(configPath string, cfg *Config) error {
	keystorePath := cfg.ArbiterKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}
	passphrase := os.Getenv(ArbiterPassphraseEnv)

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	addr, err := crypto.KeystoreAddress(keystorePath)
	if err != nil {
		return err
	}
	cfg.Arbiter = crypto.FormatAddress(addr)
	cfg.ArbiterKeystorePath = keystorePath
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := ensureArbiter(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "arbiter.keystore")
}
