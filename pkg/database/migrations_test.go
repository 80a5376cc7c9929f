package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "m.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConfig_DSN(t *testing.T) {
	dsn := Config{Path: "data/a.db"}.DSN()
	assert.True(t, strings.HasPrefix(dsn, "file:data/a.db?"))
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_foreign_keys=on")

	assert.Contains(t, Config{Path: "a.db", BusyTimeout: 250 * time.Millisecond}.DSN(), "_busy_timeout=250")
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_users.sql":          {Data: []byte("CREATE TABLE users (id TEXT);")},
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (id INTEGER);")},
		"README.md":              {Data: []byte("ignored")},
	}

	migs, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "initial_schema", migs[0].Name)
	assert.Equal(t, "users", migs[1].Name)
	assert.Len(t, migs[0].Checksum, 64)

	_, err = LoadMigrations(fstest.MapFS{"init.sql": {Data: []byte("")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("")},
		"1_b.sql":   {Data: []byte("")},
	})
	assert.Error(t, err)
}

func TestMigrator_RunMigrations(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	fsys := fstest.MapFS{
		"001_items.sql": {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
	}

	require.NoError(t, m.RunMigrations(fsys))
	require.NoError(t, m.RunMigrations(fsys))

	fsys["002_more.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;")}
	require.NoError(t, m.RunMigrations(fsys))

	applied, err := m.Applied(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "more", applied[1].Name)

	_, err = db.Exec("INSERT INTO items (name) VALUES ('x')")
	assert.NoError(t, err)
}

func TestMigrator_DetectsEditedMigration(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	require.NoError(t, m.RunMigrations(fstest.MapFS{
		"001_items.sql": {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
	}))
	err := m.RunMigrations(fstest.MapFS{
		"001_items.sql": {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);")},
	})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	err := m.RunMigrations(fstest.MapFS{"001_bad.sql": {Data: []byte("CREATE TABLE (;")}})
	require.Error(t, err)

	applied, err := m.Applied(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}
