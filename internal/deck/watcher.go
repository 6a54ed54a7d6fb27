package deck

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events into one change.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to the deck tree: decks added or removed, and card
// images created, rewritten, renamed or deleted.
type Watcher struct {
	root     string
	onChange func()
	debounce time.Duration
	log      *slog.Logger
}

// NewWatcher returns a watcher for root. onChange runs on the watcher's
// goroutine once per debounced burst.
func NewWatcher(root string, onChange func(), log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{root: root, onChange: onChange, debounce: DefaultDebounce, log: log}
}

// SetDebounce overrides the debounce interval.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(fw, filepath.Join(w.root, e.Name()))
		}
	}

	// Single debounce timer, stopped until the first relevant event.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			w.onChange()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fw, ev) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("deck watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) relevant(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	// Deck directories directly under root.
	if filepath.Dir(ev.Name) == filepath.Clean(w.root) {
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				w.add(fw, ev.Name)
				return true
			}
		}
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			return true
		}
	}
	return IsCardImage(ev.Name)
}

func (w *Watcher) add(fw *fsnotify.Watcher, dir string) {
	if err := fw.Add(dir); err != nil {
		w.log.Warn("cannot watch deck", "dir", dir, "error", err.Error())
	}
}
