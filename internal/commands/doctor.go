package commands

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dotcommander/cardshell/internal/app"
	"github.com/dotcommander/cardshell/internal/deck"
	"github.com/dotcommander/cardshell/internal/output"
	"github.com/dotcommander/cardshell/internal/store"
)

type doctorReport struct {
	DBPath        string `json:"db_path"`
	DBSource      string `json:"db_source"`
	DBOK          bool   `json:"db_ok"`
	DBErr         string `json:"db_error,omitempty"`
	SchemaVersion int64  `json:"schema_version,omitempty"`
	SchemaLatest  int64  `json:"schema_latest,omitempty"`
	DeckDir       string `json:"deck_dir"`
	DeckSource    string `json:"deck_source"`
	DeckCount     int    `json:"deck_count"`
	DeckErr       string `json:"deck_error,omitempty"`
	FaultsOK      bool   `json:"fault_settings_ok"`
	FaultsErr     string `json:"fault_settings_error,omitempty"`
	Interactive   bool   `json:"interactive"`
	Hint          string `json:"hint,omitempty"`

	Diagnostics []store.Diagnostic `json:"diagnostics"`
}

func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, deck directory and database connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := diagnose()
			if err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(report)
		},
	}
}

// diagnose only fails when a location cannot be resolved at all; everything
// else is reported in the result.
func diagnose() (doctorReport, error) {
	var r doctorReport
	var err error

	r.DBPath, r.DBSource, err = app.ResolveDBPathDetailed()
	if err != nil {
		return r, err
	}
	r.DeckDir, r.DeckSource, err = app.ResolveDeckDirDetailed()
	if err != nil {
		return r, err
	}

	if db, err := store.InitDBWithPath(r.DBPath); err != nil {
		r.DBErr = err.Error()
	} else {
		r.SchemaVersion, r.SchemaLatest, err = store.SchemaVersion(db)
		if err != nil {
			r.DBErr = err.Error()
		} else {
			r.DBOK = true
			if r.Diagnostics, err = store.RunDiagnostics(db, r.DeckDir); err != nil {
				slog.Warn("catalog diagnostics failed", "error", err.Error())
			}
		}
		_ = db.Close()
	}

	if decks, err := deck.Enumerate(r.DeckDir, slog.Default()); err != nil {
		r.DeckErr = err.Error()
	} else {
		r.DeckCount = len(decks)
	}

	if _, err := app.FunnelConfig(); err != nil {
		r.FaultsErr = err.Error()
	} else {
		r.FaultsOK = true
	}

	fd := os.Stdin.Fd()
	r.Interactive = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	switch {
	case !r.DBOK:
		r.Hint = "If this is running in a sandboxed environment, set db_path to a writable location or use --db-path."
	case r.DeckErr != "":
		r.Hint = "Create the deck directory with one sub-directory per deck, or point --deck-dir at one."
	case !r.FaultsOK:
		r.Hint = "Fix notify_timeout, ui_fault_exit_code or task_fault_exit_code in config.yaml."
	case len(r.Diagnostics) > 0:
		r.Hint = "Run 'cardshell decks' to resync the catalog with the deck directory."
	}
	if r.Diagnostics == nil {
		r.Diagnostics = []store.Diagnostic{}
	}
	return r, nil
}
