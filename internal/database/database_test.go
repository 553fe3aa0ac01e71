package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davcal/davcal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	cfg := config.Database{Host: "db", Port: 5433, User: "davcal", Pass: "p@ss/word", Name: "davcal", Schema: "app"}

	got := MigrationURL(cfg)

	assert.Equal(t, "postgres://davcal:p%40ss%2Fword@db:5433/davcal?search_path=app&sslmode=disable", got)
}

func TestConnectionString(t *testing.T) {
	cfg := config.Database{Host: "db", Port: 5432, User: "davcal", Pass: "it's", Name: "davcal", Schema: "app"}

	got := connectionString(cfg)

	assert.Contains(t, got, `password='it\'s'`)
	assert.Contains(t, got, "options='-c search_path=app'")
}

func TestFindMigrationsPath(t *testing.T) {
	// the repository root carries the migrations directory
	path, err := findMigrationsPath()

	require.NoError(t, err)
	assert.Equal(t, "migrations", filepath.Base(path))
	_, err = os.Stat(filepath.Join(path, "000001_user_preferences.up.sql"))
	assert.NoError(t, err)
}
