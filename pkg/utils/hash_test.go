package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringStable(t *testing.T) {
	assert.Equal(t, HashString("https://example.com"), HashString("https://example.com"))
	assert.NotEqual(t, HashString("a"), HashString("b"))
	assert.Len(t, HashString("anything"), 32)
}

func TestURLToSeed(t *testing.T) {
	seed := URLToSeed("https://example.com/article")
	assert.Equal(t, seed, URLToSeed("https://example.com/article"))
	assert.GreaterOrEqual(t, seed, int64(0))
	assert.NotEqual(t, seed, URLToSeed("https://example.com/other"))
}
