package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/cardshell/internal/funnel"
	"github.com/dotcommander/cardshell/internal/worker"
)

func writeUserConfig(t *testing.T, home, content string) {
	t.Helper()
	path := filepath.Join(home, ".config", "cardshell", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadSettings_PrefersUserConfigOverLocal(t *testing.T) {
	home := isolate(t)
	writeUserConfig(t, home, "deck_dir: /from-user\n")
	require.NoError(t, os.WriteFile("config.yaml", []byte("deck_dir: /from-local\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/from-user", s.DeckDir)
}

func TestLoadSettings_FallsBackToLocalConfig(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("deck_dir: /from-local\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/from-local", s.DeckDir)
}

func TestLoadSettings_InvalidYAMLReturnsError(t *testing.T) {
	home := isolate(t)
	writeUserConfig(t, home, "db_path: [")

	_, err := LoadSettings()
	require.Error(t, err)
}

func TestLoadSettingsFile_ReadsAllFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "db_path: /tmp/cards.db\n" +
		"deck_dir: /tmp/decks\n" +
		"notify_timeout: 45s\n" +
		"ui_fault_exit_code: 10\n" +
		"task_fault_exit_code: 11\n" +
		"max_workers: 3\n" +
		"log_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := loadSettingsFile(path)
	require.NoError(t, err)
	require.Equal(t, Settings{
		DBPath:            "/tmp/cards.db",
		DeckDir:           "/tmp/decks",
		NotifyTimeout:     45 * time.Second,
		UIFaultExitCode:   10,
		TaskFaultExitCode: 11,
		MaxWorkers:        3,
		LogLevel:          "debug",
	}, s)
}

func TestFunnelConfig_DefaultsAndOverrides(t *testing.T) {
	home := isolate(t)

	cfg, err := FunnelConfig()
	require.NoError(t, err)
	require.Equal(t, funnel.DefaultConfig(), cfg)

	writeUserConfig(t, home, "notify_timeout: 5s\nui_fault_exit_code: 20\n")
	resetSettingsStateForTest()
	cfg, err = FunnelConfig()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	require.Equal(t, 20, cfg.UIFaultExitCode)
	require.Equal(t, 4, cfg.TaskFaultExitCode)
}

func TestFunnelConfig_RejectsEqualExitCodes(t *testing.T) {
	home := isolate(t)
	writeUserConfig(t, home, "ui_fault_exit_code: 4\n")

	_, err := FunnelConfig()
	require.ErrorContains(t, err, "must differ")
}

func TestLoadFunnelConfig_LeavesValidationToCaller(t *testing.T) {
	home := isolate(t)
	writeUserConfig(t, home, "task_fault_exit_code: 3\n")

	cfg, err := LoadFunnelConfig()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.UIFaultExitCode)
	require.Equal(t, 3, cfg.TaskFaultExitCode)

	cfg.UIFaultExitCode = 5
	require.NoError(t, cfg.Validate())
}

func TestMaxWorkersAndLogLevel(t *testing.T) {
	home := isolate(t)
	require.Equal(t, worker.DefaultMaxWorkers, MaxWorkers())
	require.Equal(t, slog.LevelInfo, LogLevel())

	writeUserConfig(t, home, "max_workers: 2\nlog_level: WARN\n")
	resetSettingsStateForTest()
	require.Equal(t, 2, MaxWorkers())
	require.Equal(t, slog.LevelWarn, LogLevel())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" Error ": slog.LevelError,
		"warning": slog.LevelWarn,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLogLevel(in), in)
	}
}
