package game

// WinningLines lists every line in the order Evaluate scans them:
// rows, then columns, then the two diagonals.
var WinningLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Evaluate reports the outcome of a board. When several lines are complete the
// first one in WinningLines wins. The returned line is non-nil only for a win.
func Evaluate(board Board) (Outcome, *[3]int) {
	for _, line := range WinningLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != None && a == b && b == c {
			l := line
			return Outcome(a), &l
		}
	}

	if IsBoardFull(board) {
		return OutcomeDraw, nil
	}

	return OutcomeNone, nil
}

// IsBoardFull reports whether no empty cell remains.
func IsBoardFull(board Board) bool {
	for _, cell := range board {
		if cell == None {
			return false
		}
	}
	return true
}

// EmptyCells returns the indices of all empty cells in ascending order.
func EmptyCells(board Board) []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range board {
		if cell == None {
			cells = append(cells, i)
		}
	}
	return cells
}
