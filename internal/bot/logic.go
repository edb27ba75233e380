package bot

import (
	"ctchen222/tictactoe-rooms/internal/game"
	"math/rand/v2"
)

// Difficulty levels understood by CalculateNextMove.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

const center = 4

var (
	corners = []int{0, 2, 6, 8}
	sides   = []int{1, 3, 5, 7}
)

// CalculateNextMove determines the bot's next position based on the specified
// difficulty. It returns -1 when the board is full.
func CalculateNextMove(board game.Board, botMark game.Mark, difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return easyMove(board)
	case DifficultyMedium:
		return mediumMove(board, botMark)
	default:
		return hardMove(board, botMark)
	}
}

// easyMove makes a completely random move.
func easyMove(board game.Board) int {
	return randomOf(board, game.EmptyCells(board))
}

// mediumMove will win if it can, block if it must, otherwise move randomly.
func mediumMove(board game.Board, botMark game.Mark) int {
	if pos, ok := findWinningMove(board, botMark); ok {
		return pos
	}
	if pos, ok := findWinningMove(board, game.Opponent(botMark)); ok {
		return pos
	}
	return easyMove(board)
}

// hardMove implements the optimal strategy.
func hardMove(board game.Board, botMark game.Mark) int {
	if pos, ok := findWinningMove(board, botMark); ok {
		return pos
	}
	if pos, ok := findWinningMove(board, game.Opponent(botMark)); ok {
		return pos
	}
	if board[center] == game.None {
		return center
	}
	if pos := randomOf(board, corners); pos >= 0 {
		return pos
	}
	return randomOf(board, sides)
}

// findWinningMove returns the empty cell that would complete a line of mark.
func findWinningMove(board game.Board, mark game.Mark) (int, bool) {
	for _, line := range game.WinningLines {
		owned, empty := 0, -1
		for _, pos := range line {
			switch board[pos] {
			case mark:
				owned++
			case game.None:
				empty = pos
			}
		}
		if owned == 2 && empty >= 0 {
			return empty, true
		}
	}
	return -1, false
}

// randomOf picks a random empty cell among candidates.
func randomOf(board game.Board, candidates []int) int {
	var open []int
	for _, pos := range candidates {
		if board[pos] == game.None {
			open = append(open, pos)
		}
	}
	if len(open) == 0 {
		return -1
	}
	return open[rand.IntN(len(open))]
}
