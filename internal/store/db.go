package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dotcommander/cardshell/internal/app"
	_ "modernc.org/sqlite"
)

// defaultBusyTimeoutMS is the SQLite busy_timeout in milliseconds.
// Override with CARDSHELL_BUSY_TIMEOUT_MS.
const defaultBusyTimeoutMS = 5000

// InitDB opens the configured catalog database and migrates it.
func InitDB() (*sql.DB, error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, err
	}
	return InitDBWithPath(dbPath)
}

// InitDBWithPath opens the catalog at dbPath with WAL enabled and runs
// pending migrations.
func InitDBWithPath(dbPath string) (*sql.DB, error) {
	if !isMemoryDSN(dbPath) {
		if _, err := app.EnsureDBDir(dbPath); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", normalizeSQLiteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The shell writes from background tasks; one connection serialises them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busyTimeout := defaultBusyTimeoutMS
	if v := os.Getenv("CARDSHELL_BUSY_TIMEOUT_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			busyTimeout = parsed
		}
	}

	// busy_timeout goes first so the WAL switch waits on locks too.
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if err := RetryWithBackoff(func() error {
			_, err := db.ExecContext(context.Background(), pragma)
			return err
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := RetryWithBackoff(func() error { return MigrateDB(db, dbPath) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func isMemoryDSN(dbPath string) bool {
	return strings.Contains(dbPath, ":memory:")
}

func normalizeSQLiteDSN(dbPath string) string {
	if strings.HasPrefix(dbPath, "file:") {
		return dbPath
	}
	if dbPath == ":memory:" {
		return "file::memory:?cache=shared"
	}
	// mode=rwc: read/write/create.
	return "file:" + dbPath + "?mode=rwc"
}
