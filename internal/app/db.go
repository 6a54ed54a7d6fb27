package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	envDBPath  = "CARDSHELL_DB_PATH"
	envDeckDir = "CARDSHELL_DECK_DIR"
)

// pathSetting describes one resolvable location.
type pathSetting struct {
	override  func() string
	env       string
	fromFile  func(Settings) string
	defaultIn string
}

var (
	dbPathSetting = pathSetting{
		override:  getDBPathOverride,
		env:       envDBPath,
		fromFile:  func(s Settings) string { return s.DBPath },
		defaultIn: "cardshell.db",
	}
	deckDirSetting = pathSetting{
		override:  getDeckDirOverride,
		env:       envDeckDir,
		fromFile:  func(s Settings) string { return s.DeckDir },
		defaultIn: "decks",
	}
)

// resolve applies the precedence: CLI override, environment, config file,
// default under the config dir. It also reports where the value came from.
func (p pathSetting) resolve(flag string) (path, source string, err error) {
	if v := p.override(); v != "" {
		return v, fmt.Sprintf("cli(--%s)", flag), nil
	}
	if v := os.Getenv(p.env); v != "" {
		return v, fmt.Sprintf("env(%s)", p.env), nil
	}

	paths, err := settingsPaths()
	if err != nil {
		return "", "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	for _, cp := range paths {
		s, loadErr := loadSettingsFile(cp)
		if loadErr == nil {
			if v := p.fromFile(s); v != "" {
				return v, fmt.Sprintf("config(%s)", cp), nil
			}
			// First config file found wins, as in LoadSettings.
			break
		}
		if errors.Is(loadErr, os.ErrNotExist) {
			continue
		}
		return "", "", fmt.Errorf("failed to load config %s: %w", cp, loadErr)
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(dir, p.defaultIn), fmt.Sprintf("default(~/.config/cardshell/%s)", p.defaultIn), nil
}

// GetDBPath resolves the catalog database path and ensures its parent
// directory exists. Order of precedence:
// 1) --db-path
// 2) CARDSHELL_DB_PATH
// 3) config.yaml: db_path
// 4) ~/.config/cardshell/cardshell.db
func GetDBPath() (string, error) {
	path, _, err := ResolveDBPathDetailed()
	return path, err
}

// ResolveDBPathDetailed returns the resolved DB path along with the source of
// that decision. Normal code should use GetDBPath.
func ResolveDBPathDetailed() (path string, source string, err error) {
	path, source, err = dbPathSetting.resolve("db-path")
	if err != nil {
		return "", "", err
	}
	path, err = EnsureDBDir(path)
	return path, source, err
}

// GetDeckDir resolves the deck directory with the same precedence as
// GetDBPath: --deck-dir, CARDSHELL_DECK_DIR, deck_dir, then
// ~/.config/cardshell/decks. The directory is not created.
func GetDeckDir() (string, error) {
	path, _, err := ResolveDeckDirDetailed()
	return path, err
}

// ResolveDeckDirDetailed returns the deck directory and its source.
func ResolveDeckDirDetailed() (path string, source string, err error) {
	return deckDirSetting.resolve("deck-dir")
}

// EnsureDBDir creates the parent directory of dbPath.
func EnsureDBDir(dbPath string) (string, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}
