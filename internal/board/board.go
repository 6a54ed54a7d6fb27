// Package board is the view-model of an opened deck: cards laid out in a
// square-ish grid that can be flipped one at a time. It is owned by the UI
// loop and is not safe for concurrent use.
package board

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/olekukonko/tablewriter"

	"github.com/dotcommander/cardshell/internal/models"
)

// ErrCardIndex is returned for a card number outside the board.
var ErrCardIndex = errors.New("card index out of range")

const faceDown = "[face down]"

// Board holds the face state of every card of one deck.
type Board struct {
	deck  models.Deck
	cards []models.Card
}

// New lays out d. faceUp is keyed by card file name.
func New(d models.Deck, faceUp map[string]bool) *Board {
	cards := make([]models.Card, len(d.Cards))
	copy(cards, d.Cards)
	for i := range cards {
		cards[i].FaceUp = faceUp[cards[i].File]
	}
	return &Board{deck: d, cards: cards}
}

// Deck returns the deck the board was built from.
func (b *Board) Deck() models.Deck { return b.deck }

// Cards returns a copy of the cards in board order.
func (b *Board) Cards() []models.Card {
	out := make([]models.Card, len(b.cards))
	copy(out, b.cards)
	return out
}

// Toggle flips card n (1-based) and returns it in its new state.
func (b *Board) Toggle(n int) (models.Card, error) {
	if n < 1 || n > len(b.cards) {
		return models.Card{}, fmt.Errorf("%w: %d not in 1..%d", ErrCardIndex, n, len(b.cards))
	}
	c := &b.cards[n-1]
	c.FaceUp = !c.FaceUp
	return *c, nil
}

// Columns is the grid width: the smallest square that fits every card.
func (b *Board) Columns() int {
	n := len(b.cards)
	if n == 0 {
		return 0
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// FaceUpCount reports how many cards show their face.
func (b *Board) FaceUpCount() int {
	up := 0
	for _, c := range b.cards {
		if c.FaceUp {
			up++
		}
	}
	return up
}

// Render draws the grid as a table.
func (b *Board) Render(w io.Writer) error {
	cols := b.Columns()
	if cols == 0 {
		_, err := fmt.Fprintf(w, "Deck %q has no cards\n", b.deck.Name)
		return err
	}

	table := tablewriter.NewWriter(w)
	row := make([]any, 0, cols)
	for i, c := range b.cards {
		label := faceDown
		if c.FaceUp {
			label = c.Name
		}
		row = append(row, fmt.Sprintf("%d. %s", i+1, label))
		if len(row) == cols {
			if err := table.Append(row...); err != nil {
				return err
			}
			row = row[:0:0]
		}
	}
	if len(row) > 0 {
		for len(row) < cols {
			row = append(row, "")
		}
		if err := table.Append(row...); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d/%d face up\n", b.deck.Name, b.FaceUpCount(), len(b.cards))
	return err
}
