package deck

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodePNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, encodePNG(w, h), 0o644))
}

func TestCardName(t *testing.T) {
	tests := map[string]string{
		"queen_of-hearts.png": "Queen Of Hearts",
		"ace.PNG":             "Ace",
		"10__clubs.jpg":       "10 Clubs",
	}
	for file, want := range tests {
		t.Run(file, func(t *testing.T) {
			assert.Equal(t, want, CardName(file))
		})
	}
}

func TestEnumerate_FindsDecksAndCards(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "poker", "king.png"), 4, 6)
	writePNG(t, filepath.Join(root, "poker", "ace.png"), 4, 6)
	writePNG(t, filepath.Join(root, "poker", "back.png"), 4, 6)
	writePNG(t, filepath.Join(root, "tarot", "the_fool.png"), 3, 5)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "poker", "notes.txt"), []byte("x"), 0o644))

	decks, err := Enumerate(root, quietLogger())
	require.NoError(t, err)
	require.Len(t, decks, 2)

	poker := decks[0]
	assert.Equal(t, "poker", poker.Name)
	assert.Equal(t, "back.png", poker.Back)
	require.Len(t, poker.Cards, 2)
	assert.Equal(t, "ace.png", poker.Cards[0].File)
	assert.Equal(t, "Ace", poker.Cards[0].Name)
	assert.Equal(t, 4, poker.Cards[0].Width)
	assert.Equal(t, 6, poker.Cards[0].Height)

	assert.Equal(t, "tarot", decks[1].Name)
	assert.Equal(t, "The Fool", decks[1].Cards[0].Name)
}

func TestLoad_SkipsUnreadableImages(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "poker", "ace.png"), 2, 2)
	require.NoError(t, os.WriteFile(filepath.Join(root, "poker", "broken.png"), []byte("not an image"), 0o644))

	d, err := Load(root, "poker", quietLogger())
	require.NoError(t, err)
	assert.Len(t, d.Cards, 1)
	assert.Equal(t, 1, d.Skipped)
}

func TestLoad_NotFound(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"missing", "", "../etc", ".hidden"} {
		_, err := Load(root, name, quietLogger())
		require.ErrorIs(t, err, ErrDeckNotFound, name)
	}

	var nf *NotFoundError
	_, err := Load(root, "missing", quietLogger())
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "DECK_NOT_FOUND", nf.ErrorCode())
	assert.Equal(t, "missing", nf.Context()["deck"])
}

func TestEnumerate_MissingRoot(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "nope"), quietLogger())
	require.Error(t, err)
}

func TestWatcher_ReportsNewCard(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "poker", "ace.png"), 2, 2)

	changed := make(chan struct{}, 8)
	w := NewWatcher(root, func() { changed <- struct{}{} }, quietLogger())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// The watch is registered asynchronously; keep writing until noticed.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(root, "poker", "king.png"), encodePNG(2, 2), 0o644)
		select {
		case <-changed:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLoad_ReprobesChangedImages(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "poker", "ace.png")
	writePNG(t, path, 2, 3)

	d, err := Load(root, "poker", quietLogger())
	require.NoError(t, err)
	require.Len(t, d.Cards, 1)
	assert.Equal(t, 3, d.Cards[0].Height)

	writePNG(t, path, 5, 7)
	// Make sure mtime moves even on coarse-grained filesystems.
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	d, err = Load(root, "poker", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 5, d.Cards[0].Width)
	assert.Equal(t, 7, d.Cards[0].Height)

	assert.Equal(t, 1, ForgetDeck(filepath.Join(root, "poker")))
}
