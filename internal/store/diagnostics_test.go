package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/cardshell/internal/models"
)

func TestRunDiagnostics_Clean(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "poker"), 0o755))

	d := pokerDeck("ace.png")
	d.Path = filepath.Join(root, "poker")
	require.NoError(t, SyncDeck(db, d))

	diags, err := RunDiagnostics(db, root)
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestRunDiagnostics_MissingPath(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()

	d := pokerDeck("ace.png")
	d.Path = filepath.Join(root, "poker")
	require.NoError(t, SyncDeck(db, d))

	diags, err := RunDiagnostics(db, root)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "DECK_PATH_MISSING", diags[0].Code)
	assert.Equal(t, "warning", diags[0].Level)
	assert.Contains(t, diags[0].Message, "poker")
	assert.Equal(t, "cardshell decks", diags[0].SuggestedAction)
}

func TestRunDiagnostics_OutsideDirAndEmpty(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	elsewhere := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(elsewhere, "tarot"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "poker"), 0o755))

	require.NoError(t, SyncDeck(db, models.Deck{Name: "tarot", Path: filepath.Join(elsewhere, "tarot")}))
	require.NoError(t, SyncDeck(db, models.Deck{Name: "poker", Path: filepath.Join(root, "poker")}))

	diags, err := RunDiagnostics(db, root)
	require.NoError(t, err)

	codes := map[string]int{}
	for _, d := range diags {
		codes[d.Code]++
	}
	assert.Equal(t, map[string]int{"DECK_OUTSIDE_DIR": 1, "EMPTY_DECK": 2}, codes)
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/decks", "/decks/poker"))
	assert.True(t, within("/decks/", "/decks/poker/"))
	assert.False(t, within("/decks", "/elsewhere/poker"))
	assert.False(t, within("/decks", "/decks-old/poker"))
	assert.True(t, within("/decks", "/decks/..poker"))
}
