package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trustrent/config"
	"trustrent/crypto"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.DBBackend = config.BackendMemory
	cfg.Arbiter = crypto.FormatAddress([20]byte{0x33})
	cfg.Faucet.Enabled = true
	cfg.Genesis = []config.Allocation{{Address: crypto.FormatAddress([20]byte{0x22}), Amount: "500"}}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildNodeAppliesGenesisOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBBackend = config.BackendLevelDB
	cfg.DataDir = filepath.Join(t.TempDir(), "db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := openDatabase(cfg)
	require.NoError(t, err)
	node, err := buildNode(cfg, db, logger)
	require.NoError(t, err)
	bal, err := node.Balance([20]byte{0x22})
	require.NoError(t, err)
	require.Equal(t, "500", bal.String())
	require.True(t, node.FaucetEnabled())
	db.Close()

	db, err = openDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()
	node, err = buildNode(cfg, db, logger)
	require.NoError(t, err)
	bal, err = node.Balance([20]byte{0x22})
	require.NoError(t, err)
	require.Equal(t, "500", bal.String())
}

func TestRPCConfigFromSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Issuer = "trustrentctl"
	rc := rpcConfig(cfg, "secret")
	require.Equal(t, "secret", rc.Auth.HMACSecret)
	require.Equal(t, "trustrentctl", rc.Auth.Issuer)
	require.Equal(t, filepath.Join(cfg.DataDir, "idempotency.db"), rc.IdempotencyPath)
	require.Equal(t, 24*time.Hour, rc.IdempotencyTTL)
	require.Equal(t, float64(20), rc.RateLimitPerSecond)
}

func TestOpenDatabaseRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBBackend = "rocksdb"
	_, err := openDatabase(cfg)
	require.Error(t, err)
}
