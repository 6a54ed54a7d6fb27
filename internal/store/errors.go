package store

import (
	"github.com/dotcommander/cardshell/internal/models"
)

// RecoverableError is an alias for models.RecoverableError.
type RecoverableError = models.RecoverableError

// CardNotFoundError reports a face update for a card the catalog does not
// hold, usually because the deck changed on disk since it was opened.
type CardNotFoundError struct {
	Deck string
	File string
}

func (e *CardNotFoundError) Error() string {
	return "card not found in catalog: " + e.Deck + "/" + e.File
}
func (e *CardNotFoundError) ErrorCode() string { return "CARD_NOT_FOUND" }
func (e *CardNotFoundError) Context() map[string]string {
	return map[string]string{
		"deck": e.Deck,
		"file": e.File,
	}
}
func (e *CardNotFoundError) SuggestedAction() string { return "rescan" }
func (e *CardNotFoundError) Is(target error) bool { return target == ErrCardNotFound }
