package db

import (
	"path/filepath"
	"testing"

	"github.com/gamewrld/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE t (id INTEGER)").Error)
}

func TestOpen_MemoryIsolated(t *testing.T) {
	a, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)
	b, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)

	require.NoError(t, a.Exec("CREATE TABLE only_in_a (id INTEGER)").Error)
	assert.True(t, a.Migrator().HasTable("only_in_a"))
	assert.False(t, b.Migrator().HasTable("only_in_a"))
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := Open(config.DatabaseConfig{Mode: ModeSQLite, SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE t (id INTEGER)").Error)
	assert.FileExists(t, path)
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "mongo"})
	assert.Error(t, err)
}
