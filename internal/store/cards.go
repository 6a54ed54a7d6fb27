package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dotcommander/cardshell/internal/models"
)

// ErrCardNotFound is returned when a face update targets an unknown card.
var ErrCardNotFound = errors.New("card not found in catalog")

// SyncDeck records d in the catalog. Cards that disappeared from disk are
// removed; cards that remain keep their face state.
func SyncDeck(db *sql.DB, d models.Deck) error {
	return Transact(db, func(tx *sql.Tx) error {
		return syncDeckTx(tx, d, time.Now().Unix())
	})
}

// SyncDecks records every deck and drops catalog decks no longer on disk.
func SyncDecks(db *sql.DB, decks []models.Deck) error {
	now := time.Now().Unix()
	return Transact(db, func(tx *sql.Tx) error {
		keep := make(map[string]bool, len(decks))
		for _, d := range decks {
			if err := syncDeckTx(tx, d, now); err != nil {
				return err
			}
			keep[d.Name] = true
		}

		names, err := queryStrings(tx, `SELECT name FROM decks`)
		if err != nil {
			return fmt.Errorf("list decks: %w", err)
		}
		for _, name := range names {
			if keep[name] {
				continue
			}
			if _, err := tx.ExecContext(context.Background(), `DELETE FROM decks WHERE name = ?`, name); err != nil {
				return fmt.Errorf("delete deck %s: %w", name, err)
			}
		}
		return nil
	})
}

func syncDeckTx(tx *sql.Tx, d models.Deck, now int64) error {
	ctx := context.Background()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO decks (name, path, back, synced_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET path = excluded.path, back = excluded.back, synced_at = excluded.synced_at
	`, d.Name, d.Path, d.Back, now)
	if err != nil {
		return fmt.Errorf("upsert deck %s: %w", d.Name, err)
	}

	present := make(map[string]bool, len(d.Cards))
	for _, c := range d.Cards {
		present[c.File] = true
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (deck, file, name, width, height, face_up, updated_at) VALUES (?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT(deck, file) DO UPDATE SET name = excluded.name, width = excluded.width, height = excluded.height
		`, d.Name, c.File, c.Name, c.Width, c.Height, now)
		if err != nil {
			return fmt.Errorf("upsert card %s/%s: %w", d.Name, c.File, err)
		}
	}

	files, err := queryStrings(tx, `SELECT file FROM cards WHERE deck = ?`, d.Name)
	if err != nil {
		return fmt.Errorf("list cards of %s: %w", d.Name, err)
	}
	for _, f := range files {
		if present[f] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE deck = ? AND file = ?`, d.Name, f); err != nil {
			return fmt.Errorf("delete card %s/%s: %w", d.Name, f, err)
		}
	}
	return nil
}

// ListDecks returns catalog summaries sorted by name.
func ListDecks(db *sql.DB) ([]models.DeckSummary, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT d.name, d.path, d.synced_at,
		       COUNT(c.file), COALESCE(SUM(c.face_up), 0)
		FROM decks d
		LEFT JOIN cards c ON c.deck = d.name
		GROUP BY d.name
		ORDER BY d.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.DeckSummary
	for rows.Next() {
		var s models.DeckSummary
		var synced int64
		if err := rows.Scan(&s.Name, &s.Path, &synced, &s.CardCount, &s.FaceUp); err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		s.SyncedAt = time.Unix(synced, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// FaceState returns the face-up cards of deck keyed by file name.
func FaceState(db *sql.DB, deck string) (map[string]bool, error) {
	files, err := queryStrings(db, `SELECT file FROM cards WHERE deck = ? AND face_up = 1`, deck)
	if err != nil {
		return nil, fmt.Errorf("face state of %s: %w", deck, err)
	}
	out := make(map[string]bool, len(files))
	for _, f := range files {
		out[f] = true
	}
	return out, nil
}

// SetFaceUp persists the face state of one card.
func SetFaceUp(ctx context.Context, db *sql.DB, deck, file string, up bool) error {
	return RetryWithBackoff(func() error {
		res, err := db.ExecContext(ctx,
			`UPDATE cards SET face_up = ?, updated_at = ? WHERE deck = ? AND file = ?`,
			boolToInt(up), time.Now().Unix(), deck, file)
		if err != nil {
			return fmt.Errorf("set face of %s/%s: %w", deck, file, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &CardNotFoundError{Deck: deck, File: file}
		}
		return nil
	})
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryStrings returns the first column of every row.
func queryStrings(q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
