package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/cardshell/internal/app"
	"github.com/dotcommander/cardshell/internal/funnel"
	"github.com/dotcommander/cardshell/internal/shell"
	"github.com/dotcommander/cardshell/internal/shutdown"
	"github.com/dotcommander/cardshell/internal/store"
)

// ExitError asks main to exit with Code. The session has already reported
// whatever led to it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

type runOptions struct {
	interactive   bool
	noPrompt      bool
	noWatch       bool
	notifyTimeout time.Duration
	uiExitCode    int
	taskExitCode  int
}

// NewRunCmd creates the interactive session command.
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Browse decks interactively",
		Long: `Run opens the interactive card browser on this terminal.

Unexpected errors are reported in a dialog. After an error on the UI loop or
in a background task you choose whether to continue. An error on a detached
worker always ends the process once it has been shown or --notify-timeout
has passed.

Exit codes:
  0    normal exit
  3    stopped after a UI error (--ui-exit-code)
  4    stopped after a background task error (--task-exit-code)
  130  interrupted`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveFunnelConfig(cmd, opts)
			if err != nil {
				return cmdErr(err)
			}
			return runShell(cmd, opts, cfg)
		},
	}

	cmd.Flags().BoolVar(&opts.interactive, "interactive", false, "Show prompts even when stdin is not a terminal")
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "Never show prompts; errors fail open")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not rescan when the deck directory changes")
	cmd.Flags().DurationVar(&opts.notifyTimeout, "notify-timeout", 0, "How long a fatal error waits for its prompt (default from config, 30s)")
	cmd.Flags().IntVar(&opts.uiExitCode, "ui-exit-code", 0, "Exit code after stopping on a UI error (default from config, 3)")
	cmd.Flags().IntVar(&opts.taskExitCode, "task-exit-code", 0, "Exit code after stopping on a background task error (default from config, 4)")
	cmd.MarkFlagsMutuallyExclusive("interactive", "no-prompt")

	return cmd
}

// resolveFunnelConfig layers flags that were set over the configured values.
func resolveFunnelConfig(cmd *cobra.Command, opts runOptions) (funnel.Config, error) {
	cfg, err := app.LoadFunnelConfig()
	if err != nil {
		return cfg, err
	}
	return applyFunnelFlags(cmd, opts, cfg)
}

// applyFunnelFlags overrides cfg with the flags that were set. Only the
// merged result is validated, so a flag may repair a configured conflict.
func applyFunnelFlags(cmd *cobra.Command, opts runOptions, cfg funnel.Config) (funnel.Config, error) {
	if cmd.Flags().Changed("notify-timeout") {
		cfg.NotifyTimeout = opts.notifyTimeout
	}
	if cmd.Flags().Changed("ui-exit-code") {
		cfg.UIFaultExitCode = opts.uiExitCode
	}
	if cmd.Flags().Changed("task-exit-code") {
		cfg.TaskFaultExitCode = opts.taskExitCode
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid fault settings: %w", err)
	}
	return cfg, nil
}

func runShell(cmd *cobra.Command, opts runOptions, cfg funnel.Config) error {
	deckDir, err := app.GetDeckDir()
	if err != nil {
		return cmdErr(err)
	}
	dbPath, err := app.GetDBPath()
	if err != nil {
		return cmdErr(err)
	}
	db, err := store.InitDBWithPath(dbPath)
	if err != nil {
		return cmdErr(err)
	}

	log := slog.Default()
	cleanup := shutdown.New(shutdown.DefaultTimeout, log)
	cleanup.Register("catalog", shutdown.CloseResource(db))

	sopts := shell.Options{
		In:         cmd.InOrStdin(),
		Out:        cmd.OutOrStdout(),
		DeckDir:    deckDir,
		DB:         db,
		Funnel:     cfg,
		MaxWorkers: app.MaxWorkers(),
		Watch:      !opts.noWatch,
		Cleanup:    cleanup,
		Log:        log,
	}
	switch {
	case opts.interactive:
		on := true
		sopts.Interactive = &on
	case opts.noPrompt:
		off := false
		sopts.Interactive = &off
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("session starting", "deck_dir", deckDir, "db_path", dbPath,
		"notify_timeout", cfg.NotifyTimeout.String(), "ui_exit_code", cfg.UIFaultExitCode,
		"task_exit_code", cfg.TaskFaultExitCode)

	code, err := shell.New(sopts).Run(ctx)
	if err != nil {
		return cmdErr(err)
	}
	log.Info("session ended", "exit_code", code)
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// contextOrBackground keeps RunE usable when a test calls it directly.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
