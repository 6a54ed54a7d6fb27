// Package deck discovers card decks on disk. A deck is a directory of card
// images; an image named back.* is the deck's card back.
package deck

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dotcommander/cardshell/internal/models"
	"github.com/dotcommander/cardshell/pkg/memory"
)

const (
	probesPerDeck = 512
	probeTTL      = 10 * time.Minute
)

// probe is a decoded image header, valid while the file keeps size and mtime.
type probe struct {
	size    int64
	modTime time.Time
	cfg     image.Config
}

// probes is scoped by deck directory and keyed by file name. A rescan only
// decodes headers of files that changed since the last one.
var probes = memory.NewLRU[probe](probesPerDeck)

// ErrDeckNotFound is matched by *NotFoundError.
var ErrDeckNotFound = errors.New("deck not found")

// NotFoundError reports a deck name with no matching directory.
type NotFoundError struct {
	Name string
	Root string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("deck %q not found", e.Name) }
func (e *NotFoundError) ErrorCode() string { return "DECK_NOT_FOUND" }
func (e *NotFoundError) Context() map[string]string {
	return map[string]string{"deck": e.Name, "root": e.Root}
}
func (e *NotFoundError) SuggestedAction() string { return "cardshell decks" }
func (e *NotFoundError) Is(target error) bool { return target == ErrDeckNotFound }

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// IsCardImage reports whether name has a supported image extension.
func IsCardImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

func isBack(name string) bool {
	return strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), "back")
}

// CardName turns a file name like "queen_of-hearts.png" into "Queen Of Hearts".
func CardName(file string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	// A Caser keeps state, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(strings.Fields(base), " "))
}

// Enumerate returns every deck under root, sorted by name. Directories
// without a readable card image are not decks.
func Enumerate(root string, log *slog.Logger) ([]models.Deck, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read deck dir: %w", err)
	}

	var decks []models.Deck
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		d, err := load(filepath.Join(root, e.Name()), log)
		if err != nil {
			return nil, err
		}
		if len(d.Cards) == 0 {
			continue
		}
		decks = append(decks, d)
	}
	sort.Slice(decks, func(i, j int) bool { return decks[i].Name < decks[j].Name })
	return decks, nil
}

// Load reads the deck called name under root.
func Load(root, name string, log *slog.Logger) (models.Deck, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return models.Deck{}, &NotFoundError{Name: name, Root: root}
	}
	dir := filepath.Join(root, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return models.Deck{}, &NotFoundError{Name: name, Root: root}
	}
	return load(dir, log)
}

func load(dir string, log *slog.Logger) (models.Deck, error) {
	if log == nil {
		log = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return models.Deck{}, fmt.Errorf("read deck %s: %w", filepath.Base(dir), err)
	}

	d := models.Deck{Name: filepath.Base(dir), Path: dir}
	for _, e := range entries {
		if e.IsDir() || !IsCardImage(e.Name()) {
			continue
		}
		cfg, err := probeImage(dir, e.Name())
		if err != nil {
			log.Warn("skipping unreadable card image", "deck", d.Name, "file", e.Name(), "error", err.Error())
			d.Skipped++
			continue
		}
		if isBack(e.Name()) {
			d.Back = e.Name()
			continue
		}
		d.Cards = append(d.Cards, models.Card{
			Name:   CardName(e.Name()),
			File:   e.Name(),
			Width:  cfg.Width,
			Height: cfg.Height,
		})
	}
	sort.Slice(d.Cards, func(i, j int) bool { return d.Cards[i].File < d.Cards[j].File })
	return d, nil
}

func probeImage(dir, file string) (image.Config, error) {
	path := filepath.Join(dir, file)
	info, err := os.Stat(path)
	if err != nil {
		probes.Delete(dir, file)
		return image.Config{}, err
	}
	if p, ok := probes.Get(dir, file); ok && p.size == info.Size() && p.modTime.Equal(info.ModTime()) {
		return p.cfg, nil
	}
	cfg, err := decodeConfig(path)
	if err != nil {
		probes.Delete(dir, file)
		return image.Config{}, err
	}
	probes.Set(dir, file, probe{size: info.Size(), modTime: info.ModTime(), cfg: cfg}, memory.WithTTL(probeTTL))
	return cfg, nil
}

// ForgetDeck drops cached image headers for the deck at dir.
func ForgetDeck(dir string) int {
	return probes.Forget(dir)
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}
