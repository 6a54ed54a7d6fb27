package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Diagnostic represents a single consistency check finding.
type Diagnostic struct {
	Level           string `json:"level"` // "warning" or "error"
	Code            string `json:"code"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}

type catalogDeck struct {
	name  string
	path  string
	cards int
}

// RunDiagnostics compares the catalog against deckDir and returns findings.
// Nothing is changed; the next deck scan repairs all of them.
func RunDiagnostics(db *sql.DB, deckDir string) ([]Diagnostic, error) {
	decks, err := catalogDecks(db)
	if err != nil {
		return nil, fmt.Errorf("catalog decks: %w", err)
	}

	var diags []Diagnostic
	for _, d := range decks {
		if info, err := os.Stat(d.path); err != nil || !info.IsDir() {
			diags = append(diags, Diagnostic{
				Level:           "warning",
				Code:            "DECK_PATH_MISSING",
				Message:         fmt.Sprintf("deck %s points at %s, which is not a directory", d.name, d.path),
				SuggestedAction: "cardshell decks",
			})
			continue
		}
		if !within(deckDir, d.path) {
			diags = append(diags, Diagnostic{
				Level:           "warning",
				Code:            "DECK_OUTSIDE_DIR",
				Message:         fmt.Sprintf("deck %s was synced from %s, outside %s", d.name, d.path, deckDir),
				SuggestedAction: "cardshell decks",
			})
		}
		if d.cards == 0 {
			diags = append(diags, Diagnostic{
				Level:   "warning",
				Code:    "EMPTY_DECK",
				Message: fmt.Sprintf("deck %s has no cards in the catalog", d.name),
			})
		}
	}
	return diags, nil
}

func catalogDecks(db *sql.DB) ([]catalogDeck, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT d.name, d.path, COUNT(c.file)
		FROM decks d
		LEFT JOIN cards c ON c.deck = d.name
		GROUP BY d.name
		ORDER BY d.name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []catalogDeck
	for rows.Next() {
		var d catalogDeck
		if err := rows.Scan(&d.name, &d.path, &d.cards); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
