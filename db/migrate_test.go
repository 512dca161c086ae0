package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("successfully opens database and runs migrations", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		for _, table := range []string{
			"schema_migrations",
			"import_jobs",
			"import_results",
			"visited_places",
			"google_tokens",
			"device_tokens",
		} {
			var exists int
			err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&exists)
			require.NoError(t, err)
			assert.Equal(t, 1, exists, "table %s should exist after migrations", table)
		}
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		db.Close()

		// Reopening runs Migrate again over an already-migrated schema
		db, err = OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		var applied int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied)
		require.NoError(t, err)
		assert.Equal(t, 6, applied)
	})

	t.Run("foreign keys cascade from jobs to results", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec(`INSERT INTO import_jobs (id, user_id, status, created_at, updated_at)
			VALUES ('j1', 'u1', 'completed', datetime('now'), datetime('now'))`)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO import_results (job_id, user_id, payload, created_at, expires_at)
			VALUES ('j1', 'u1', '{}', datetime('now'), datetime('now', '+1 day'))`)
		require.NoError(t, err)

		_, err = db.Exec("DELETE FROM import_jobs WHERE id = 'j1'")
		require.NoError(t, err)

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM import_results WHERE job_id = 'j1'").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "results row should cascade on job delete")
	})
}
