package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexSource_NewToken(t *testing.T) {
	src := NewHexSource("tok_")

	tok := src.NewToken()
	assert.True(t, strings.HasPrefix(tok, "tok_"))
	assert.Len(t, tok, len("tok_")+64)
}

func TestHexSource_TokensAreUnique(t *testing.T) {
	src := NewHexSource("qr_")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := src.NewToken()
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
