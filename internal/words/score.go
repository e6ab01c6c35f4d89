package words

// Mark is the per-letter verdict for one scored guess.
type Mark string

const (
	MarkHit     Mark = "hit"     // right letter, right position
	MarkPresent Mark = "present" // right letter, wrong position
	MarkMiss    Mark = "miss"    // letter not in the solution
)

// LetterMark pairs a guessed letter with its verdict.
type LetterMark struct {
	Letter string `json:"letter"`
	Mark   Mark   `json:"mark"`
}

// Score compares guess against solution, case-insensitively. Hits are awarded
// first; remaining solution letters then satisfy presents left to right, so a
// doubled letter in the guess never scores more presents than the solution
// holds.
func Score(guess, solution string) []LetterMark {
	g := []rune(Normalize(guess))
	s := []rune(Normalize(solution))

	marks := make([]LetterMark, len(g))
	remaining := make(map[rune]int)

	for i, sr := range s {
		if i < len(g) && g[i] == sr {
			continue
		}
		remaining[sr]++
	}

	for i, gr := range g {
		letter := string(gr)
		switch {
		case i < len(s) && s[i] == gr:
			marks[i] = LetterMark{Letter: letter, Mark: MarkHit}
		case remaining[gr] > 0:
			remaining[gr]--
			marks[i] = LetterMark{Letter: letter, Mark: MarkPresent}
		default:
			marks[i] = LetterMark{Letter: letter, Mark: MarkMiss}
		}
	}
	return marks
}

// Solves reports whether guess exactly matches solution, ignoring case.
func Solves(guess, solution string) bool {
	return Normalize(guess) == Normalize(solution)
}
