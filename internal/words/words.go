// Package words holds the solution dictionary and the deterministic
// guess-scoring function the play engine is built on.
package words

import (
	_ "embed"
	"math/rand"
	"strings"
	"sync"
)

// WordLength is the fixed length of every solution and guess.
const WordLength = 5

//go:embed words.txt
var rawWords string

var (
	loadOnce sync.Once
	list     []string
	set      map[string]struct{}
)

func load() {
	loadOnce.Do(func() {
		set = make(map[string]struct{})
		for _, line := range strings.Split(rawWords, "\n") {
			word := Normalize(line)
			if len(word) != WordLength {
				continue
			}
			if _, dup := set[word]; dup {
				continue
			}
			set[word] = struct{}{}
			list = append(list, word)
		}
	})
}

// Normalize lower-cases and trims a candidate word. Scoring and membership
// checks are case-insensitive throughout.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Valid reports whether word is in the accepted dictionary.
func Valid(word string) bool {
	load()
	_, ok := set[Normalize(word)]
	return ok
}

// Pick returns n distinct random solutions.
func Pick(n int) []string {
	load()
	picked := make([]string, 0, n)
	for _, i := range rand.Perm(len(list)) {
		if len(picked) == n {
			break
		}
		picked = append(picked, list[i])
	}
	return picked
}

// Count returns the dictionary size.
func Count() int {
	load()
	return len(list)
}
