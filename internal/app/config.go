package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/cardshell/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cardshell"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# cardshell configuration
# Run: cardshell --help

# Card catalog database. Also CARDSHELL_DB_PATH or --db-path.
# db_path: ~/.config/cardshell/cardshell.db

# Directory holding one sub-directory per deck. Also CARDSHELL_DECK_DIR or --deck-dir.
# deck_dir: ~/.config/cardshell/decks

# How long a fatal error waits for its prompt before the process is killed.
# notify_timeout: 30s

# Exit codes used when the user stops after a UI error or a background task error.
# ui_fault_exit_code: 3
# task_fault_exit_code: 4

# Background task concurrency.
# max_workers: 8

# debug, info, warn or error.
# log_level: info
`
