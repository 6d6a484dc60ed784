// Package wordlist supplies the adjective+noun pairs the registry draws
// auto-generated agent handles from (spec §3: "auto-generated two-word
// handle drawn from a fixed adjective+noun word list, rejection-sampled
// for uniqueness").
package wordlist

import (
	_ "embed"
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"
)

//go:embed words.yaml
var wordsYAML []byte

type lists struct {
	Adjectives []string `yaml:"adjectives"`
	Nouns      []string `yaml:"nouns"`
}

var parsed lists

func init() {
	if err := yaml.Unmarshal(wordsYAML, &parsed); err != nil {
		panic(fmt.Sprintf("wordlist: embedded words.yaml is malformed: %v", err))
	}
	if len(parsed.Adjectives) == 0 || len(parsed.Nouns) == 0 {
		panic("wordlist: embedded words.yaml must list at least one adjective and one noun")
	}
}

// Handle returns a random "adjective-noun" pair, e.g. "amber-falcon".
func Handle(rng *rand.Rand) string {
	adj := parsed.Adjectives[rng.Intn(len(parsed.Adjectives))]
	noun := parsed.Nouns[rng.Intn(len(parsed.Nouns))]
	return adj + "-" + noun
}

// Capacity is the number of distinct handles the word list can produce,
// used by callers to bound rejection-sampling attempts.
func Capacity() int {
	return len(parsed.Adjectives) * len(parsed.Nouns)
}
