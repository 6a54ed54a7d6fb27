package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardNotFoundError(t *testing.T) {
	err := error(&CardNotFoundError{Deck: "poker", File: "joker.png"})

	assert.ErrorIs(t, err, ErrCardNotFound)
	assert.False(t, errors.Is(err, errors.New("card not found in catalog")))
	assert.Equal(t, "card not found in catalog: poker/joker.png", err.Error())

	var re RecoverableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "CARD_NOT_FOUND", re.ErrorCode())
	assert.Equal(t, map[string]string{"deck": "poker", "file": "joker.png"}, re.Context())
	assert.Equal(t, "rescan", re.SuggestedAction())
}
