package models

import "time"

// Card is one card image inside a deck directory.
type Card struct {
	// Name is the display name derived from the file name.
	Name string `json:"name"`
	// File is the image file name relative to the deck directory.
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FaceUp bool   `json:"face_up"`
}

// Deck is a directory of card images.
type Deck struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// Back is the card back image file, empty when the deck has none.
	Back    string `json:"back,omitempty"`
	Cards   []Card `json:"cards"`
	Skipped int    `json:"skipped,omitempty"`
}

// DeckSummary is the catalog view of a deck.
type DeckSummary struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CardCount int       `json:"card_count"`
	FaceUp    int       `json:"face_up"`
	SyncedAt  time.Time `json:"synced_at"`
}
