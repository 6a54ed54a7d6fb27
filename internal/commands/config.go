package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/cardshell/internal/app"
	"github.com/dotcommander/cardshell/internal/output"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print settings after flags, environment and config.yaml are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, dbSource, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(err)
			}
			deckDir, deckSource, err := app.ResolveDeckDirDetailed()
			if err != nil {
				return cmdErr(err)
			}
			cfg, err := app.FunnelConfig()
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				DBPath            string `json:"db_path"`
				DBSource          string `json:"db_source"`
				DeckDir           string `json:"deck_dir"`
				DeckSource        string `json:"deck_source"`
				NotifyTimeout     string `json:"notify_timeout"`
				UIFaultExitCode   int    `json:"ui_fault_exit_code"`
				TaskFaultExitCode int    `json:"task_fault_exit_code"`
				MaxWorkers        int    `json:"max_workers"`
				LogLevel          string `json:"log_level"`
			}
			return output.PrintSuccess(resp{
				DBPath:            dbPath,
				DBSource:          dbSource,
				DeckDir:           deckDir,
				DeckSource:        deckSource,
				NotifyTimeout:     cfg.NotifyTimeout.String(),
				UIFaultExitCode:   cfg.UIFaultExitCode,
				TaskFaultExitCode: cfg.TaskFaultExitCode,
				MaxWorkers:        app.MaxWorkers(),
				LogLevel:          app.LogLevel().String(),
			})
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := app.ConfigDir()
			if err != nil {
				return cmdErr(err)
			}
			type resp struct {
				Dir string `json:"dir"`
			}
			return output.PrintSuccess(resp{Dir: dir})
		},
	}
}
