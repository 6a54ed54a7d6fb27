package shell

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/dotcommander/cardshell/internal/board"
	"github.com/dotcommander/cardshell/internal/deck"
	"github.com/dotcommander/cardshell/internal/models"
	"github.com/dotcommander/cardshell/internal/store"
	"github.com/dotcommander/cardshell/internal/worker"
)

const helpText = `Commands:
  decks           list decks
  open <deck>     lay out a deck
  show            draw the open deck
  flip <n>        turn card n over
  rescan          reload decks from disk
  fault ui        raise an error on the UI loop
  fault task      fail three background tasks nobody waits for
  fault thread    crash a detached worker
  quit            leave
`

// handle runs one command line on the UI loop.
func (s *Shell) handle(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		s.con.Printf("%s", helpText)
	case "decks":
		s.listDecks()
	case "open":
		if len(args) != 1 {
			s.con.Printf("usage: open <deck>\n")
			return
		}
		s.open(args[0])
	case "show":
		s.show()
	case "flip":
		if len(args) != 1 {
			s.con.Printf("usage: flip <n>\n")
			return
		}
		s.flip(args[0])
	case "rescan":
		s.rescan()
	case "fault":
		if len(args) != 1 {
			s.con.Printf("usage: fault ui|task|thread\n")
			return
		}
		s.raise(args[0])
	case "quit", "exit", "q":
		s.finish(0)
	default:
		s.con.Printf("unknown command %q; type 'help'\n", cmd)
	}
}

func (s *Shell) listDecks() {
	if len(s.decks) == 0 {
		s.con.Printf("No decks in %s\n", s.opts.DeckDir)
		return
	}
	for _, d := range s.decks {
		s.con.Printf("  %-16s %d cards\n", d.Name, len(d.Cards))
	}
}

func (s *Shell) open(name string) {
	var d models.Deck
	found := false
	for _, candidate := range s.decks {
		if candidate.Name == name {
			d, found = candidate, true
			break
		}
	}
	if !found {
		s.con.Printf("%v\n", &deck.NotFoundError{Name: name, Root: s.opts.DeckDir})
		return
	}

	faceUp := map[string]bool{}
	if s.opts.DB != nil {
		state, err := store.FaceState(s.opts.DB, d.Name)
		if err != nil {
			s.log.Warn("face state unavailable", "deck", d.Name, "error", err.Error())
		} else {
			faceUp = state
		}
	}
	s.board = board.New(d, faceUp)
	s.con.Printf("Opened %s (%d cards)\n", d.Name, len(d.Cards))
	s.show()
}

func (s *Shell) show() {
	if s.board == nil {
		s.con.Printf("No deck open; use: open <deck>\n")
		return
	}
	if err := s.board.Render(s.con.Writer()); err != nil {
		s.log.Warn("render failed", "error", err.Error())
	}
}

func (s *Shell) flip(arg string) {
	if s.board == nil {
		s.con.Printf("No deck open; use: open <deck>\n")
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		s.con.Printf("not a card number: %q\n", arg)
		return
	}
	c, err := s.board.Toggle(n)
	if err != nil {
		s.con.Printf("%v\n", err)
		return
	}
	state := "face down"
	if c.FaceUp {
		state = "face up"
	}
	s.con.Printf("%d. %s is now %s\n", n, c.Name, state)
	s.persist(s.board.Deck().Name, c)
}

// persist writes the face state in the background. Nobody waits for the
// task; a failure surfaces as an unobserved task fault.
func (s *Shell) persist(deckName string, c models.Card) {
	if s.opts.DB == nil {
		return
	}
	s.inflight.Add(1)
	worker.Start(s.bg, s.rt, func(ctx context.Context) (struct{}, error) {
		defer s.inflight.Add(-1)
		return struct{}{}, store.SetFaceUp(ctx, s.opts.DB, deckName, c.File, c.FaceUp)
	})
}

// rescan reloads decks on a worker and applies the result on the loop.
func (s *Shell) rescan() {
	bg := s.bg
	task := worker.Start(bg, s.rt, func(context.Context) ([]models.Deck, error) {
		decks, err := deck.Enumerate(s.opts.DeckDir, s.log)
		if err != nil {
			return nil, err
		}
		if s.opts.DB != nil {
			if err := store.SyncDecks(s.opts.DB, decks); err != nil {
				return nil, err
			}
		}
		return decks, nil
	})
	s.rt.Go("rescan", func() {
		decks, err := task.Wait(bg)
		_ = s.gw.Do(bg, func(context.Context) error {
			s.applyDecks(decks, err)
			return nil
		})
	})
}

func (s *Shell) applyDecks(decks []models.Deck, err error) {
	if err != nil {
		s.con.Printf("Could not scan %s: %v\n", s.opts.DeckDir, err)
		return
	}
	for _, old := range s.decks {
		if !slices.ContainsFunc(decks, func(d models.Deck) bool { return d.Path == old.Path }) {
			deck.ForgetDeck(old.Path)
		}
	}
	s.decks = decks
	s.con.Printf("Found %d deck(s) in %s\n", len(decks), s.opts.DeckDir)

	if s.board == nil {
		return
	}
	open := s.board.Deck().Name
	for _, d := range decks {
		if d.Name == open {
			s.board = board.New(d, faceUpOf(s.board))
			return
		}
	}
	s.con.Printf("Deck %s is gone\n", open)
	s.board = nil
}

func faceUpOf(b *board.Board) map[string]bool {
	out := map[string]bool{}
	for _, c := range b.Cards() {
		if c.FaceUp {
			out[c.File] = true
		}
	}
	return out
}

func (s *Shell) raise(kind string) {
	switch kind {
	case "ui":
		raiseUIFault()
	case "task":
		s.raiseTaskFault()
	case "thread":
		s.raiseThreadFault()
	default:
		s.con.Printf("unknown fault %q; use ui, task or thread\n", kind)
	}
}
