package database

import (
	"testing"
	"testing/fstest"

	"library-services/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *MigrationRunner {
	t.Helper()
	db, err := NewConnection(Config{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)

	source := fstest.MapFS{
		"002_seed_shelves.sql":   {Data: []byte(`INSERT INTO shelves (name) VALUES ('fiction');`)},
		"001_create_shelves.sql": {Data: []byte(`CREATE TABLE shelves (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"README.md":              {Data: []byte("not a migration")},
	}
	return NewMigrationRunner(db, source)
}

func TestMigrationRunner_AppliesInOrderOnce(t *testing.T) {
	runner := openMemory(t)

	pending, err := runner.GetMigrationStatus()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "001", pending[0].ID)
	assert.Equal(t, "create shelves", pending[0].Description)
	assert.Nil(t, pending[0].AppliedAt)

	require.NoError(t, runner.RunMigrations())
	require.NoError(t, runner.RunMigrations())

	var count int64
	require.NoError(t, runner.db.Raw("SELECT COUNT(*) FROM shelves").Scan(&count).Error)
	assert.Equal(t, int64(1), count)

	status, err := runner.GetMigrationStatus()
	require.NoError(t, err)
	for _, m := range status {
		assert.NotNil(t, m.AppliedAt, m.ID)
	}
}

func TestMigrationRunner_FailedMigrationIsNotRecorded(t *testing.T) {
	db, err := NewConnection(Config{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	runner := NewMigrationRunner(db, fstest.MapFS{
		"001_broken.sql": {Data: []byte(`CREATE TABLE (`)},
	})

	assert.Error(t, runner.RunMigrations())

	status, err := runner.GetMigrationStatus()
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Nil(t, status[0].AppliedAt)
}

func TestParseMigration_RejectsBadNames(t *testing.T) {
	_, err := parseMigration("create.sql", nil)
	assert.Error(t, err)

	m, err := parseMigration("010_add_index_on_title.sql", []byte("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, "010", m.ID)
	assert.Equal(t, "add index on title", m.Description)
}

func TestEmbeddedMigrationsPerService(t *testing.T) {
	for _, service := range []string{"ledger", "catalog"} {
		source, err := migrations.For(service)
		require.NoError(t, err)

		runner := NewMigrationRunner(nil, source)
		loaded, err := runner.load()
		require.NoError(t, err)
		assert.NotEmpty(t, loaded, service)
		assert.Equal(t, "001", loaded[0].ID)
	}
}
