package wordlist

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleShapeIsAdjectiveDashNoun(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := Handle(rng)
	parts := strings.Split(h, "-")
	assert.Len(t, parts, 2)
	assert.NotEmpty(t, parts[0])
	assert.NotEmpty(t, parts[1])
}

func TestCapacityMatchesListSizes(t *testing.T) {
	assert.Equal(t, len(parsed.Adjectives)*len(parsed.Nouns), Capacity())
	assert.Greater(t, Capacity(), 100)
}
