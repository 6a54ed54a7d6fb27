package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dotcommander/cardshell/internal/app"
	"github.com/dotcommander/cardshell/internal/board"
	"github.com/dotcommander/cardshell/internal/deck"
	"github.com/dotcommander/cardshell/internal/models"
	"github.com/dotcommander/cardshell/internal/output"
	"github.com/dotcommander/cardshell/internal/store"
)

// NewDecksCmd creates the decks command.
func NewDecksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decks",
		Short: "Scan the deck directory and list decks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deckDir, err := app.GetDeckDir()
			if err != nil {
				return cmdErr(err)
			}
			decks, err := deck.Enumerate(deckDir, slog.Default())
			if err != nil {
				return cmdErr(err)
			}

			return withDB(func(db *DB) error {
				if err := store.SyncDecks(db, decks); err != nil {
					return err
				}
				summaries, err := store.ListDecks(db)
				if err != nil {
					return err
				}

				type resp struct {
					DeckDir string               `json:"deck_dir"`
					Count   int                  `json:"count"`
					Decks   []models.DeckSummary `json:"decks"`
				}
				return output.PrintSuccess(resp{DeckDir: deckDir, Count: len(summaries), Decks: summaries})
			})
		},
	}

	cmd.AddCommand(newDecksShowCmd())
	return cmd
}

func newDecksShowCmd() *cobra.Command {
	var grid bool

	cmd := &cobra.Command{
		Use:   "show <deck>",
		Short: "Show the cards of one deck with their saved face state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deckDir, err := app.GetDeckDir()
			if err != nil {
				return cmdErr(err)
			}
			d, err := deck.Load(deckDir, args[0], slog.Default())
			if err != nil {
				return cmdErr(err)
			}

			return withDB(func(db *DB) error {
				if err := store.SyncDeck(db, d); err != nil {
					return err
				}
				faceUp, err := store.FaceState(db, d.Name)
				if err != nil {
					return err
				}
				b := board.New(d, faceUp)
				if grid {
					return b.Render(cmd.OutOrStdout())
				}

				type resp struct {
					Deck    string        `json:"deck"`
					Path    string        `json:"path"`
					Back    string        `json:"back,omitempty"`
					Columns int           `json:"columns"`
					FaceUp  int           `json:"face_up"`
					Skipped int           `json:"skipped,omitempty"`
					Cards   []models.Card `json:"cards"`
				}
				return output.PrintSuccess(resp{
					Deck:    d.Name,
					Path:    d.Path,
					Back:    d.Back,
					Columns: b.Columns(),
					FaceUp:  b.FaceUpCount(),
					Skipped: d.Skipped,
					Cards:   b.Cards(),
				})
			})
		},
	}

	cmd.Flags().BoolVar(&grid, "grid", false, "Draw the deck as a table instead of JSON")
	return cmd
}
