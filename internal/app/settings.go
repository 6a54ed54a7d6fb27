package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dotcommander/cardshell/internal/funnel"
	"github.com/dotcommander/cardshell/internal/worker"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DBPath            string        `yaml:"db_path" json:"db_path,omitempty"`
	DeckDir           string        `yaml:"deck_dir" json:"deck_dir,omitempty"`
	NotifyTimeout     time.Duration `yaml:"notify_timeout" json:"notify_timeout,omitempty"`
	UIFaultExitCode   int           `yaml:"ui_fault_exit_code" json:"ui_fault_exit_code,omitempty"`
	TaskFaultExitCode int           `yaml:"task_fault_exit_code" json:"task_fault_exit_code,omitempty"`
	MaxWorkers        int           `yaml:"max_workers" json:"max_workers,omitempty"`
	LogLevel          string        `yaml:"log_level" json:"log_level,omitempty"`
}

// Process-wide settings singleton and CLI path overrides.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	overrideMu      sync.RWMutex
	dbPathOverride  string
	deckDirOverride string
)

// SetDBPathOverride sets a process-wide database path override (--db-path).
func SetDBPathOverride(path string) {
	overrideMu.Lock()
	dbPathOverride = path
	overrideMu.Unlock()
}

// SetDeckDirOverride sets a process-wide deck directory override (--deck-dir).
func SetDeckDirOverride(path string) {
	overrideMu.Lock()
	deckDirOverride = path
	overrideMu.Unlock()
}

func getDBPathOverride() string {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	return dbPathOverride
}

func getDeckDirOverride() string {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	return deckDirOverride
}

// settingsPaths lists config files in lookup order, first found wins:
// user config, /etc, then ./config.yaml.
func settingsPaths() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(string(os.PathSeparator), "etc", "cardshell", "config.yaml"),
		"config.yaml",
	}, nil
}

// LoadSettings loads configuration once using settingsPaths. Environment
// variables and flags are applied by the callers.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		paths, err := settingsPaths()
		if err != nil {
			settingsErr = err
			return
		}
		for _, p := range paths {
			s, err := loadSettingsFile(p)
			if err == nil {
				settings = s
				return
			}
			if !errors.Is(err, os.ErrNotExist) {
				settingsErr = fmt.Errorf("%s: %w", p, err)
				return
			}
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FunnelConfig merges configured fault policy values over the defaults and
// validates the result.
func FunnelConfig() (funnel.Config, error) {
	cfg, err := LoadFunnelConfig()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid fault settings: %w", err)
	}
	return cfg, nil
}

// LoadFunnelConfig merges configured fault policy values over the defaults
// without validating. Callers that layer more overrides validate the result.
func LoadFunnelConfig() (funnel.Config, error) {
	cfg := funnel.DefaultConfig()
	s, err := LoadSettings()
	if err != nil {
		return cfg, err
	}
	if s.NotifyTimeout > 0 {
		cfg.NotifyTimeout = s.NotifyTimeout
	}
	if s.UIFaultExitCode != 0 {
		cfg.UIFaultExitCode = s.UIFaultExitCode
	}
	if s.TaskFaultExitCode != 0 {
		cfg.TaskFaultExitCode = s.TaskFaultExitCode
	}
	return cfg, nil
}

// MaxWorkers returns the configured pool size, or the worker default.
func MaxWorkers() int {
	s, err := LoadSettings()
	if err != nil || s.MaxWorkers <= 0 {
		return worker.DefaultMaxWorkers
	}
	return s.MaxWorkers
}

// LogLevel maps log_level to a slog level. Unknown values mean info.
func LogLevel() slog.Level {
	s, err := LoadSettings()
	if err != nil {
		return slog.LevelInfo
	}
	return ParseLogLevel(s.LogLevel)
}

// ParseLogLevel maps a level name to a slog level. Unknown values mean info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
