package commands

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/dotcommander/cardshell/internal/models"
	"github.com/dotcommander/cardshell/internal/output"
	"github.com/dotcommander/cardshell/internal/store"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// The JSON error response is the output; main only needs a non-nil error.
	return "error already printed"
}

func (e printedError) Unwrap() error { return e.err }

func openDB() (*DB, func(), error) {
	db, err := store.InitDB()
	if err != nil {
		return nil, nil, err
	}

	return db, func() { _ = db.Close() }, nil
}

func withDB(fn func(db *DB) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(db); err != nil {
		return cmdErr(err)
	}
	return nil
}

// cmdErr logs err, prints it as a JSON error response and marks it printed.
func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	var pe printedError
	if errors.As(err, &pe) {
		return err
	}

	attrs := []any{"error", err.Error()}
	var re models.RecoverableError
	if errors.As(err, &re) {
		attrs = append(attrs, "error_code", re.ErrorCode())
		for k, v := range re.Context() {
			attrs = append(attrs, k, v)
		}
	}
	slog.Error("command error", attrs...)
	_ = output.PrintError(err)
	return printedError{err: err}
}
