package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/cardshell/internal/app"
	"github.com/dotcommander/cardshell/internal/output"
	"github.com/dotcommander/cardshell/internal/store"
)

func NewDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Catalog database utilities",
	}

	cmd.AddCommand(newDBPathCmd())
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved database path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, source, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				Path   string `json:"path"`
				Source string `json:"source"`
			}
			return output.PrintSuccess(resp{Path: path, Source: source})
		},
	}
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and report the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the catalog migrates it.
			return withDB(func(db *DB) error {
				current, latest, err := store.SchemaVersion(db)
				if err != nil {
					return err
				}
				type resp struct {
					Version int64 `json:"version"`
					Latest  int64 `json:"latest"`
				}
				return output.PrintSuccess(resp{Version: current, Latest: latest})
			})
		},
	}
}
