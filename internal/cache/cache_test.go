package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("search", "movie", "the matrix", "1999")
	b := Key("search", "movie", "the matrix", "1999")
	assert.Equal(t, a, b, "same parts must hash to the same key")
}

func TestKeyDistinguishesParts(t *testing.T) {
	a := Key("search", "movie", "the matrix", "1999")
	b := Key("search", "movie", "the matrix", "2003")
	assert.NotEqual(t, a, b)

	// Part boundaries matter: "ab"+"c" is not "a"+"bc".
	assert.NotEqual(t, Key("search", "ab", "c"), Key("search", "a", "bc"))
}

func TestKeyDistinguishesKind(t *testing.T) {
	a := Key("search", "tmdb", "603")
	b := Key("details", "tmdb", "603")
	assert.NotEqual(t, a, b)

	assert.Contains(t, a, "search:")
	assert.Contains(t, b, "details:")
}
