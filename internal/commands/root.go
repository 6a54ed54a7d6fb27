package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/cardshell/internal/app"
	"github.com/dotcommander/cardshell/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	root := NewRootCmd(version)

	err := root.Execute()
	if err != nil {
		var pe printedError
		var exit *ExitError
		if !errors.As(err, &pe) && !errors.As(err, &exit) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "cardshell",
		Short:         "Browse card image decks with a crash-safe interactive shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}

			// Wire --db-path and --deck-dir into the app-level resolvers.
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}
			if deckDir, err := cmd.Flags().GetString("deck-dir"); err == nil && deckDir != "" {
				app.SetDeckDirOverride(deckDir)
			}

			level := app.LogLevel()
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override catalog database path")
	root.PersistentFlags().String("deck-dir", "", "Override deck directory")
	root.PersistentFlags().Bool("verbose", false, "Log at debug level")
	root.Flags().BoolP("version", "v", false, "version for cardshell")

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewDecksCmd())
	root.AddCommand(NewDoctorCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewDBCmd())
	root.AddCommand(NewSchemaCmd(root))

	return root
}
