package commands

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = original }()

	fn()

	require.NoError(t, w.Close())

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return string(b)
}

// isolateEnv points config, catalog and decks at temp locations.
func isolateEnv(t *testing.T) (deckDir, dbPath string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	deckDir = filepath.Join(home, "decks")
	dbPath = filepath.Join(home, "catalog", "cards.db")
	require.NoError(t, os.MkdirAll(deckDir, 0o755))
	t.Setenv("CARDSHELL_DECK_DIR", deckDir)
	t.Setenv("CARDSHELL_DB_PATH", dbPath)
	return deckDir, dbPath
}

func writeDeck(t *testing.T, root, name string, cards ...string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 3))))
	for _, c := range cards {
		require.NoError(t, os.WriteFile(filepath.Join(dir, c), buf.Bytes(), 0o644))
	}
}

func requireFlagExists(t *testing.T, cmd *cobra.Command, name string) {
	t.Helper()
	f := cmd.Flags().Lookup(name)
	require.NotNil(t, f, "flag --%s", name)
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	ErrorCode string          `json:"error_code"`
}

func decodeEnvelope(t *testing.T, raw string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env), raw)
	return env
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	for _, path := range [][]string{
		{"run"}, {"decks"}, {"decks", "show"}, {"doctor"},
		{"config", "show"}, {"config", "path"}, {"db", "path"}, {"db", "migrate"}, {"schema", "commands"},
	} {
		sub, _, err := root.Find(path)
		require.NoError(t, err, "%v", path)
		require.Equal(t, path[len(path)-1], sub.Name())
	}
	requireFlagExists(t, root, "version")
	require.NotNil(t, root.PersistentFlags().Lookup("db-path"))
	require.NotNil(t, root.PersistentFlags().Lookup("deck-dir"))
}

func TestRootCmd_Version(t *testing.T) {
	isolateEnv(t)
	root := NewRootCmd("v1.2.3")
	root.SetArgs([]string{"--version"})

	out := captureStdout(t, func() {
		require.NoError(t, root.Execute())
	})
	env := decodeEnvelope(t, out)
	require.True(t, env.Success)
	require.JSONEq(t, `{"version":"v1.2.3"}`, string(env.Data))
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: 4}
	require.EqualError(t, err, "exit status 4")
}
