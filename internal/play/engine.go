// Package play derives per-player game state from a player's own guess list.
// Every client runs the same derivation over the same data, so no server-side
// arbiter and no turn order are needed.
package play

import (
	"github.com/wuzzlegames/wuzzle/internal/words"
)

// BoardStat is the derived state of one board for one player.
type BoardStat struct {
	Solution   string             `json:"-"`
	GuessCount int                `json:"guessCount"`
	Solved     bool               `json:"solved"`
	Failed     bool               `json:"failed"`
	Rows       []Row              `json:"rows"`
	Tally      map[words.Mark]int `json:"tally"`
}

// Row is one scored guess on one board.
type Row []words.LetterMark

// PlayerBoards replays a player's guesses against the solution list. Guesses
// apply to every board still unsolved at the time they were made; a board
// stops accumulating rows once solved. Without speedrun, a board fails when
// guessLimit rows land without a match; speedrun imposes no limit.
func PlayerBoards(solutions []string, guesses []string, guessLimit int, speedrun bool) []BoardStat {
	stats := make([]BoardStat, len(solutions))
	for i, solution := range solutions {
		stats[i] = BoardStat{
			Solution: solution,
			Tally:    map[words.Mark]int{},
		}
	}

	for _, guess := range guesses {
		for i := range stats {
			stat := &stats[i]
			if stat.Solved || stat.Failed {
				continue
			}

			row := Row(words.Score(guess, stat.Solution))
			stat.Rows = append(stat.Rows, row)
			stat.GuessCount++
			for _, lm := range row {
				stat.Tally[lm.Mark]++
			}

			if words.Solves(guess, stat.Solution) {
				stat.Solved = true
			} else if !speedrun && stat.GuessCount >= guessLimit {
				stat.Failed = true
			}
		}
	}
	return stats
}

// SolvedAll reports whether every board has been solved.
func SolvedAll(stats []BoardStat) bool {
	for _, stat := range stats {
		if !stat.Solved {
			return false
		}
	}
	return len(stats) > 0
}

// Done reports whether the player can make no further progress: every board
// is either solved or failed.
func Done(stats []BoardStat) bool {
	for _, stat := range stats {
		if !stat.Solved && !stat.Failed {
			return false
		}
	}
	return len(stats) > 0
}

// SolvedCount returns how many boards the player has solved.
func SolvedCount(stats []BoardStat) int {
	n := 0
	for _, stat := range stats {
		if stat.Solved {
			n++
		}
	}
	return n
}

// VisibleRows renders another player's rows for a viewer. With more than one
// board in play, letters stay hidden until the viewer has personally solved
// all boards; the color marks always show, preserving the "how close are
// they" signal. Single-board rooms reveal letters as-is. This is presentation
// masking over data every client already holds, not access control.
func VisibleRows(rows []Row, multiBoard, viewerSolvedAll bool) []Row {
	if !multiBoard || viewerSolvedAll {
		return rows
	}

	masked := make([]Row, len(rows))
	for i, row := range rows {
		maskedRow := make(Row, len(row))
		for j, lm := range row {
			maskedRow[j] = words.LetterMark{Letter: "", Mark: lm.Mark}
		}
		masked[i] = maskedRow
	}
	return masked
}
