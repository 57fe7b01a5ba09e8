package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "icm.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"schema_migrations", "icm_job", "icm_batch_schedule", "icm_job_history", "icm_job_task", "icm_job_task_history", "app_config"} {
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table))
		assert.Equal(t, 1, n, "table %s should exist", table)
	}
}

func TestMigrate(t *testing.T) {
	t.Run("records every version", func(t *testing.T) {
		db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "icm.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db.DB, nil))

		var versions []string
		require.NoError(t, db.Select(&versions, "SELECT version FROM schema_migrations ORDER BY version"))
		assert.Equal(t, []string{"000", "001", "002", "003", "004"}, versions)
	})

	t.Run("is idempotent", func(t *testing.T) {
		db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "icm.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db.DB, nil))
		require.NoError(t, Migrate(db.DB, nil), "running migrations twice should be safe")
	})

	t.Run("fails on closed database", func(t *testing.T) {
		db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "icm.db"), nil)
		require.NoError(t, err)
		db.Close()

		err = Migrate(db.DB, nil)
		require.Error(t, err)
		assert.True(t, IsDatabaseClosed(err))
	})
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	all, err := embeddedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, "000", all[0].version)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].file, all[i].file)
	}
}
