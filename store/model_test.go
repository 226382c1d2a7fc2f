package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileNameRoundTrip(t *testing.T) {
	assert.Equal(t, "jot_abc123.txt", FileName("abc123"))

	token, ok := TokenFromFileName(FileName("a-b_c=="))
	assert.True(t, ok)
	assert.Equal(t, "a-b_c==", token)

	for _, name := range []string{"jot_.txt", "notes.txt", "jot_abc.txt.swp", ".jot-123.tmp"} {
		_, ok := TokenFromFileName(name)
		assert.False(t, ok, name)
	}
}
