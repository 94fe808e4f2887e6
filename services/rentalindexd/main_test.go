package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"trustrent/services/rentalindexd/config"
	"trustrent/services/rentalindexd/index"
)

func TestOpenDatabaseSQLite(t *testing.T) {
	db, err := openDatabase(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "index.db")})
	require.NoError(t, err)
	require.NoError(t, index.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	_, err := openDatabase(config.DatabaseConfig{Driver: "mysql"})
	require.ErrorContains(t, err, "unsupported database driver")
}
