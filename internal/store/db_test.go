package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDB(t *testing.T) {
	testDBPath := filepath.Join(t.TempDir(), "nested", "cards.db")

	db, err := InitDBWithPath(testDBPath)
	require.NoError(t, err)
	defer db.Close()

	_, statErr := os.Stat(testDBPath)
	require.NoError(t, statErr, "database file should be created")

	for _, table := range []string{"decks", "cards"} {
		var name string
		scanErr := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, scanErr, "table %s", table)
	}

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)
}

func TestInitDB_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.db")
	db, err := InitDBWithPath(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDBWithPath(path)
	require.NoError(t, err)
	defer db.Close()

	current, latest, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, int64(2), latest)
	require.Equal(t, latest, current)
}

func TestNormalizeSQLiteDSN(t *testing.T) {
	require.Equal(t, "file::memory:?cache=shared", normalizeSQLiteDSN(":memory:"))
	require.Equal(t, "file:/tmp/x.db?mode=rwc", normalizeSQLiteDSN("/tmp/x.db"))
	require.Equal(t, "file:custom?mode=ro", normalizeSQLiteDSN("file:custom?mode=ro"))
}
