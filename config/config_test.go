package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"trustrent/crypto"
)

var testAddr = crypto.FormatAddress([20]byte{0x42, 19: 0x24})

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCreatesDefaultWithArbiterKeystore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendLevelDB, cfg.DBBackend)
	require.Equal(t, DefaultSecretEnv, cfg.Auth.SecretEnv)
	require.True(t, strings.HasPrefix(cfg.Arbiter, "rent1"))

	addr, err := crypto.KeystoreAddress(cfg.ArbiterKeystorePath)
	require.NoError(t, err)
	require.Equal(t, cfg.Arbiter, crypto.FormatAddress(addr))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Arbiter, reloaded.Arbiter)
}

func TestLoadParsesSections(t *testing.T) {
	path := writeConfig(t, `NetworkName = "testnet"
DataDir = "./data"
DBBackend = "memory"
Arbiter = "`+testAddr+`"

[rpc]
ListenAddress = "127.0.0.1:9000"
RateLimitPerSecond = 5.5
RateLimitBurst = 10

[auth]
Issuer = "trustrent"
Audience = "rpc"

[faucet]
Enabled = true
Amount = "250"

[pricing]
RateE8 = "99000000"
MaxAgeSeconds = 900

[[genesis]]
Address = "`+testAddr+`"
Amount = "1000"

[[genesis]]
Address = "0x00000000000000000000000000000000000000aa"
Amount = "5"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "testnet", cfg.NetworkName)
	require.Equal(t, BackendMemory, cfg.DBBackend)
	require.Equal(t, "127.0.0.1:9000", cfg.RPC.ListenAddress)
	require.Equal(t, 5.5, cfg.RPC.RateLimitPerSecond)
	require.Equal(t, "rpc", cfg.Auth.Audience)
	require.Equal(t, filepath.Join("./data", "idempotency.db"), cfg.IdempotencyFile())

	allocs, err := cfg.GenesisAllocations()
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	require.Equal(t, "1000", allocs[0].Amount.String())
	require.Equal(t, byte(0xaa), allocs[1].Address[19])

	faucet, err := cfg.FaucetAmount()
	require.NoError(t, err)
	require.Equal(t, "250", faucet.String())
	rate, err := cfg.PricingRate()
	require.NoError(t, err)
	require.Equal(t, "99000000", rate.String())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `Arbiter = "`+testAddr+`"
ValidatorKey = "abc"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown key")
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Arbiter = testAddr
		return cfg
	}
	require.NoError(t, base().Validate())

	cfg := base()
	cfg.DBBackend = "redis"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Arbiter = "nope"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Genesis = []Allocation{{Address: testAddr, Amount: "-1"}}
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Faucet = Faucet{Enabled: true, Amount: "0"}
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Pricing.RateE8 = "abc"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Telemetry.SampleRatio = 2
	require.Error(t, cfg.Validate())
}

func TestJWTSecretFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv(DefaultSecretEnv, "  s3cret ")
	require.Equal(t, "s3cret", cfg.JWTSecret())
}
