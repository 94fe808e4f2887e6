package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rentalindexd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "node_rpc: http://node:8645\n"))
	require.NoError(t, err)
	require.Equal(t, ":8646", cfg.ListenAddress)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "rentalindex.db", cfg.Database.DSN)
	require.Equal(t, 2*time.Second, cfg.PollInterval.Duration)
	require.Equal(t, 500, cfg.BatchSize)
}

func TestLoadConfigResolvesDSNFromEnv(t *testing.T) {
	t.Setenv("RENTALINDEX_DSN", "postgres://index@db/rentals")
	cfg, err := LoadConfig(writeConfig(t, `
node_rpc: http://node:8645
poll_interval: 500ms
database:
  driver: Postgres
  dsn_env: RENTALINDEX_DSN
`))
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Equal(t, "postgres://index@db/rentals", cfg.Database.DSN)
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval.Duration)
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "node_rpc: http://node:8645\nbogus: true\n",
		"bad driver":      "database:\n  driver: mysql\n  dsn: x\n",
		"postgres no dsn": "database:\n  driver: postgres\n",
		"relative rpc":    "node_rpc: node:8645/rpc\n",
		"fast poll":       "poll_interval: 1ms\n",
		"bad duration":    "poll_interval: soon\n",
		"oversized batch": "batch_size: 5000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
